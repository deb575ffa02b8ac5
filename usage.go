package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:3000"

var usageMethods = []string{"get", "post", "put", "patch", "delete", "options", "head"}

// UsageDoc renders plain-text endpoint summaries from an OpenAPI document
// and caches the result until Invalidate is called.
type UsageDoc struct {
	path string

	mu     sync.Mutex
	cached string
	ok     bool
}

// NewUsageDoc creates a UsageDoc for the OpenAPI file at path.
func NewUsageDoc(path string) *UsageDoc {
	return &UsageDoc{path: path}
}

// Path returns the OpenAPI file path.
func (u *UsageDoc) Path() string {
	return u.path
}

// Text returns the cached usage text, building it on first use.
func (u *UsageDoc) Text() (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ok {
		return u.cached, nil
	}
	data, err := os.ReadFile(u.path)
	if err != nil {
		return "", fmt.Errorf("read api description: %w", err)
	}
	text, err := renderUsage(data)
	if err != nil {
		return "", err
	}
	u.cached, u.ok = text, true
	return text, nil
}

// Invalidate drops the cached text.
func (u *UsageDoc) Invalidate() {
	u.mu.Lock()
	u.cached, u.ok = "", false
	u.mu.Unlock()
}

// Watch invalidates the cache whenever the OpenAPI file changes, until ctx
// is done. The parent directory is watched so that editors replacing the
// file by rename are noticed.
func (u *UsageDoc) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(u.path)); err != nil {
		_ = w.Close()
		return err
	}
	target := filepath.Clean(u.path)
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					slog.DebugContext(ctx, "API description changed, dropping usage cache", "path", u.path, "op", event.Op.String())
					u.Invalidate()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching API description", "err", err)
			}
		}
	}()
	return nil
}

// renderUsage builds the usage text. Paths and operations are listed in
// document order.
func renderUsage(data []byte) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("parse api description: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	info := mapValue(doc, "info")
	title := scalarOr(mapValue(info, "title"), "API")
	version := scalarOr(mapValue(info, "version"), "unknown")
	serverURL := defaultServerURL
	if servers := mapValue(doc, "servers"); servers != nil && servers.Kind == yaml.SequenceNode && len(servers.Content) > 0 {
		serverURL = scalarOr(mapValue(servers.Content[0], "url"), defaultServerURL)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (v%s)\n", title, version)
	fmt.Fprintf(&b, "Base URL: %s\n", serverURL)
	if desc := strings.TrimSpace(scalarOr(mapValue(info, "description"), "")); desc != "" {
		fmt.Fprintf(&b, "\n%s\n", desc)
	}
	b.WriteString("\nEndpoints:\n")

	paths := mapValue(doc, "paths")
	for p, ops := range mapPairs(paths) {
		for method, op := range mapPairs(ops) {
			if !slices.Contains(usageMethods, method) {
				continue
			}
			summary := scalarOr(mapValue(op, "summary"), "(no summary)")
			upper := strings.ToUpper(method)
			fmt.Fprintf(&b, "- %s %s: %s\n", upper, p, summary)
			curl := fmt.Sprintf("curl -X %s \"%s%s\"", upper, serverURL, p)
			if mapValue(op, "requestBody") != nil {
				curl += ` -H "content-type: application/json" -d '{"...": "..."}'`
			}
			fmt.Fprintf(&b, "  e.g., %s\n", curl)
		}
	}
	b.WriteString("\nTip: Get the full spec at /spec")
	return b.String(), nil
}

// mapValue returns the value for key in a mapping node, or nil.
func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// mapPairs iterates over a mapping node's keys and values in order.
func mapPairs(n *yaml.Node) iter.Seq2[string, *yaml.Node] {
	return func(yield func(string, *yaml.Node) bool) {
		if n == nil || n.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			if !yield(n.Content[i].Value, n.Content[i+1]) {
				return
			}
		}
	}
}

func scalarOr(n *yaml.Node, def string) string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Value == "" {
		return def
	}
	return n.Value
}
