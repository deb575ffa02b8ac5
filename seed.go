package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// defaultSeed returns the sample collection written on first start.
func defaultSeed(now time.Time) []Item {
	now = now.UTC().Truncate(time.Millisecond)
	items := []Item{
		{Name: "ThinkPad X1 Carbon", Type: TypeLaptop, Price: 1899.0, InStock: true, Tags: []string{"ultrabook", "14in"}},
		{Name: "Pixel Phone", Type: TypePhone, Price: 799.0, InStock: true, Tags: []string{"android", "camera"}},
		{Name: "USB-C Hub", Type: TypeAccessory, Price: 49.99, InStock: false, Tags: []string{"dock", "usb-c"}},
	}
	for i := range items {
		items[i].ID = NewRecordID(int64(i + 1))
		items[i].CreatedAt = now
		items[i].UpdatedAt = now
	}
	return items
}

// EnsureFiles prepares dataDir for a FileStore. A missing seed snapshot is
// written from the default seed, and so is a live document missing alongside
// it. A live document missing next to an existing seed starts empty. Existing
// files are never rewritten.
func EnsureFiles(dataDir string, now time.Time) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	livePath := filepath.Join(dataDir, liveFileName)
	seedPath := filepath.Join(dataDir, seedFileName)

	seedExists, err := fileExists(seedPath)
	if err != nil {
		return err
	}
	liveExists, err := fileExists(livePath)
	if err != nil {
		return err
	}
	if !seedExists {
		data, err := encodeCollection(defaultSeed(now))
		if err != nil {
			return err
		}
		if err := writeFileAtomic(seedPath, data); err != nil {
			return err
		}
		if liveExists {
			slog.Info("Wrote default seed snapshot, keeping live document", "dir", dataDir)
			return nil
		}
		if err := writeFileAtomic(livePath, data); err != nil {
			return err
		}
		slog.Info("Initialized data directory with default seed", "dir", dataDir)
		return nil
	}
	if !liveExists {
		if err := writeFileAtomic(livePath, []byte("[]\n")); err != nil {
			return err
		}
		slog.Info("Created empty live document", "path", livePath)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
