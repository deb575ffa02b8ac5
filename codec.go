package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// decodeCollection parses a backing document. Anything other than a JSON
// array of items, or an array holding the same numeric id twice, is a
// *CorruptStoreError.
func decodeCollection(data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &CorruptStoreError{Err: errors.New("document is not a JSON array")}
	}
	var items []Item
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &CorruptStoreError{Err: err}
	}
	seen := make(map[float64]struct{}, len(items))
	for i := range items {
		if items[i].Tags == nil {
			items[i].Tags = []string{}
		}
		v, ok := normalizeID(items[i].ID.raw)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			return nil, &CorruptStoreError{Err: fmt.Errorf("duplicate id %s", strconv.FormatFloat(v, 'f', -1, 64))}
		}
		seen[v] = struct{}{}
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// encodeCollection renders items as an indented JSON array with a trailing
// newline.
func encodeCollection(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return append(data, '\n'), nil
}

// readCollection loads and decodes the document at path.
func readCollection(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	items, err := decodeCollection(data)
	if err != nil {
		var cse *CorruptStoreError
		if errors.As(err, &cse) {
			cse.Path = path
		}
		return nil, err
	}
	return items, nil
}

// writeFileAtomic stages data in a temporary file next to path and renames
// it into place, so readers see either the old or the new document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// writeCollection encodes items and atomically replaces the document at path.
func writeCollection(path string, items []Item) error {
	data, err := encodeCollection(items)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}
