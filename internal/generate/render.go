package generate

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/docpub/internal/errors"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s</body>
</html>
`

// renderMarkdown is the built-in fallback generator: it converts the source
// tree's Markdown files to HTML inside the docs checkout, mirroring the
// relative layout.
func (r *Runner) renderMarkdown() error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	rendered := 0
	err := filepath.WalkDir(r.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(r.sourceDir, path)
		if err != nil {
			return err
		}
		if !r.included(rel) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := md.Convert(data, &buf); err != nil {
			return fmt.Errorf("failed to render %s: %w", rel, err)
		}

		out := filepath.Join(r.docsDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".html")
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return err
		}
		title := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		page := fmt.Sprintf(pageTemplate, title, buf.String())
		if err := os.WriteFile(out, []byte(page), 0o600); err != nil {
			return err
		}
		rendered++
		return nil
	})
	if err != nil {
		return errors.GenerateError("markdown rendering failed").WithCause(err).Build()
	}

	slog.Info("Rendered markdown documentation", "files", rendered, "output", r.docsDir)
	return nil
}

// included reports whether a relative path matches the configured include
// prefixes. An empty include list admits everything.
func (r *Runner) included(rel string) bool {
	if len(r.cfg.Include) == 0 {
		return true
	}
	rel = filepath.ToSlash(rel)
	for _, prefix := range r.cfg.Include {
		prefix = strings.TrimSuffix(filepath.ToSlash(prefix), "/")
		if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
			return true
		}
	}
	return false
}
