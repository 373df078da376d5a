package daemon

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"git.home.luguber.info/inful/docpub/internal/metrics"
)

const maxWebhookBody = 1 << 20

// pushEvent is the subset of a forge push payload the daemon cares about.
type pushEvent struct {
	Ref string `json:"ref"`
}

func (d *Daemon) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(d.cfg.Daemon.WebhookPath, d.handleWebhook)
	mux.HandleFunc("/healthz", d.handleHealthz)
	mux.HandleFunc("/status", d.handleStatus)
	if d.registry != nil {
		mux.Handle("/metrics", metrics.Handler(d.registry))
	}
	return mux
}

// handleWebhook accepts forge push notifications. Pushes to branches other
// than the watched one are acknowledged but ignored.
func (d *Daemon) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if d.cfg.Daemon.WebhookSecret != "" {
		if !verifySignature(body, r.Header.Get("X-Hub-Signature-256"), d.cfg.Daemon.WebhookSecret) {
			slog.Warn("Webhook signature verification failed", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event pushEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if event.Ref == "" {
		http.Error(w, "payload has no ref", http.StatusBadRequest)
		return
	}

	branch := strings.TrimPrefix(event.Ref, "refs/heads/")
	if branch != d.cfg.Daemon.WatchBranch {
		slog.Debug("Ignoring push to unwatched branch", "ref", event.Ref)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "ref": event.Ref})
		return
	}

	status := "queued"
	if !d.Trigger("webhook") {
		status = "coalesced"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	status := map[string]any{
		"running":        d.running,
		"reload_pending": d.reloadPending,
	}
	if d.lastRun != nil {
		status["last_run"] = d.lastRun
	}
	d.mu.RUnlock()
	writeJSON(w, http.StatusOK, status)
}

// verifySignature checks a GitHub-style "sha256=<hex>" HMAC header.
func verifySignature(body []byte, header, secret string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
