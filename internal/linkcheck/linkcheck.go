// Package linkcheck scans generated HTML for broken relative links. It is a
// warn-only post-generation pass: findings are reported, never fatal.
package linkcheck

import (
	"bytes"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Issue is one broken relative link found in a generated file.
type Issue struct {
	File   string // path relative to the scanned root
	Target string // the raw href/src value
}

// Report summarizes a scan of the generated output.
type Report struct {
	FilesScanned int
	LinksChecked int
	Issues       []Issue
}

// Broken reports whether the scan found any broken links.
func (r *Report) Broken() bool { return len(r.Issues) > 0 }

// Verify walks the generated output tree and checks that every relative
// href/src resolves to an existing file. External URLs, anchors, and
// mailto links are ignored.
func Verify(root string) (*Report, error) {
	report := &Report{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		report.FilesScanned++

		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return err
		}

		targets, err := extractTargets(bytes.NewReader(data))
		if err != nil {
			// Unparseable HTML is a finding, not an abort.
			report.Issues = append(report.Issues, Issue{File: rel, Target: "(unparseable HTML)"})
			return nil
		}

		for _, target := range targets {
			if !checkable(target) {
				continue
			}
			report.LinksChecked++
			if !resolves(root, path, target) {
				report.Issues = append(report.Issues, Issue{File: rel, Target: target})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// extractTargets collects href and src attribute values from an HTML document.
func extractTargets(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var targets []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == "href" || attr.Key == "src" {
					if attr.Val != "" {
						targets = append(targets, attr.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return targets, nil
}

// checkable reports whether a link target is a relative path we can verify
// on disk.
func checkable(target string) bool {
	if strings.HasPrefix(target, "#") || strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "tel:") || strings.HasPrefix(target, "data:") {
		return false
	}
	if u, err := url.Parse(target); err != nil || u.IsAbs() || u.Host != "" {
		return false
	}
	return true
}

// resolves checks whether a relative target exists relative to the linking
// file (or the root, for root-relative paths).
func resolves(root, fromFile, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" { // pure fragment/query
		return true
	}

	var candidate string
	if strings.HasPrefix(p, "/") {
		candidate = filepath.Join(root, filepath.FromSlash(p))
	} else {
		candidate = filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(p))
	}

	info, err := os.Stat(candidate)
	if err != nil {
		return false
	}
	if info.IsDir() {
		// Directory links count when an index page exists.
		_, err := os.Stat(filepath.Join(candidate, "index.html"))
		return err == nil
	}
	return true
}
