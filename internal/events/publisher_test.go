package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(EventRunStarted, map[string]string{"run_id": "x"})
	p.Close()
}

func TestEnvelopeShape(t *testing.T) {
	env := Envelope{
		Event:     EventRunFinished,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Data:      map[string]any{"run_id": "r1", "status": "success"},
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["event"] != EventRunFinished {
		t.Errorf("event = %v", decoded["event"])
	}
	data, ok := decoded["data"].(map[string]any)
	if !ok || data["status"] != "success" {
		t.Errorf("data = %v", decoded["data"])
	}
}
