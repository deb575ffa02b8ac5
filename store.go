package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	liveFileName = "db.json"
	seedFileName = "seed.json"
)

// FileStore provides item persistence in a JSON document on disk, with a
// second document holding the seed snapshot used by Reset.
//
// Every operation loads the collection from disk. Mutations run under the
// store's Locker and replace the live document with an atomic rename, so
// readers never need the lock.
type FileStore struct {
	livePath string
	seedPath string
	locker   Locker
	now      func() time.Time
	metrics  *Metrics
}

// StoreOption configures a FileStore.
type StoreOption func(*FileStore)

// WithLocker replaces the default in-process write lock.
func WithLocker(l Locker) StoreOption {
	return func(s *FileStore) { s.locker = l }
}

// WithClock sets the time source used for createdAt and updatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *FileStore) { s.now = now }
}

// WithMetrics records store operations on m.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *FileStore) { s.metrics = m }
}

// NewFileStore creates a FileStore over dataDir. Call EnsureFiles first on a
// fresh directory.
func NewFileStore(dataDir string, opts ...StoreOption) *FileStore {
	s := &FileStore{
		livePath: filepath.Join(dataDir, liveFileName),
		seedPath: filepath.Join(dataDir, seedFileName),
		locker:   newLocalLocker(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get retrieves an item by its path id.
func (s *FileStore) Get(ctx context.Context, id string) (item Item, err error) {
	defer s.observe("get", time.Now(), &err)
	n, ok := parsePathID(id)
	if !ok {
		return Item{}, ErrNotFound
	}
	items, err := readCollection(s.livePath)
	if err != nil {
		return Item{}, err
	}
	idx := indexOf(items, n)
	if idx < 0 {
		return Item{}, ErrNotFound
	}
	return items[idx], nil
}

// List returns the items matching q.
func (s *FileStore) List(ctx context.Context, q ListQuery) (res ListResult, err error) {
	defer s.observe("list", time.Now(), &err)
	items, err := readCollection(s.livePath)
	if err != nil {
		return ListResult{}, err
	}
	return queryItems(items, q), nil
}

// Create validates p, assigns the next id and appends the new item.
func (s *FileStore) Create(ctx context.Context, p Payload) (item Item, err error) {
	defer s.observe("create", time.Now(), &err)
	if err := validatePayload(p, false); err != nil {
		return Item{}, err
	}
	err = s.mutate(ctx, func(items []Item) ([]Item, error) {
		id, err := nextID(items)
		if err != nil {
			return nil, err
		}
		now := s.stamp()
		item = Item{ID: NewRecordID(id), Tags: []string{}, CreatedAt: now, UpdatedAt: now}
		if err := applyPayload(&item, p, false); err != nil {
			return nil, err
		}
		return append(items, item), nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Replace overwrites every client-owned field of an existing item.
func (s *FileStore) Replace(ctx context.Context, id string, p Payload) (item Item, err error) {
	defer s.observe("replace", time.Now(), &err)
	if err := validatePayload(p, false); err != nil {
		return Item{}, err
	}
	n, ok := parsePathID(id)
	if !ok {
		return Item{}, ErrNotFound
	}
	err = s.mutate(ctx, func(items []Item) ([]Item, error) {
		idx := indexOf(items, n)
		if idx < 0 {
			return nil, ErrNotFound
		}
		old := items[idx]
		item = Item{ID: old.ID, Tags: []string{}, CreatedAt: old.CreatedAt, UpdatedAt: s.stamp()}
		if err := applyPayload(&item, p, false); err != nil {
			return nil, err
		}
		items[idx] = item
		return items, nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Patch merges the fields present in p onto an existing item.
func (s *FileStore) Patch(ctx context.Context, id string, p Payload) (item Item, err error) {
	defer s.observe("patch", time.Now(), &err)
	if err := validatePayload(p, true); err != nil {
		return Item{}, err
	}
	n, ok := parsePathID(id)
	if !ok {
		return Item{}, ErrNotFound
	}
	err = s.mutate(ctx, func(items []Item) ([]Item, error) {
		idx := indexOf(items, n)
		if idx < 0 {
			return nil, ErrNotFound
		}
		item = items[idx]
		if err := applyPayload(&item, p, true); err != nil {
			return nil, err
		}
		item.UpdatedAt = s.stamp()
		items[idx] = item
		return items, nil
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Delete removes an item.
func (s *FileStore) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)
	n, ok := parsePathID(id)
	if !ok {
		return ErrNotFound
	}
	return s.mutate(ctx, func(items []Item) ([]Item, error) {
		idx := indexOf(items, n)
		if idx < 0 {
			return nil, ErrNotFound
		}
		return append(items[:idx], items[idx+1:]...), nil
	})
}

// Reset replaces the live document with the seed snapshot, byte for byte.
func (s *FileStore) Reset(ctx context.Context) (err error) {
	defer s.observe("reset", time.Now(), &err)
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := os.ReadFile(s.seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	items, err := decodeCollection(data)
	if err != nil {
		var cse *CorruptStoreError
		if errors.As(err, &cse) {
			cse.Path = s.seedPath
		}
		return err
	}
	if err := writeFileAtomic(s.livePath, data); err != nil {
		return err
	}
	s.metrics.setItems(len(items))
	return nil
}

// RenumberIDs assigns ids 1..n in collection order and rewrites both the
// live document and the seed snapshot. It returns the old to new mapping.
func (s *FileStore) RenumberIDs(ctx context.Context) (mapping []IDMapping, err error) {
	defer s.observe("renumber", time.Now(), &err)
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	items, err := readCollection(s.livePath)
	if err != nil {
		return nil, err
	}
	mapping = make([]IDMapping, 0, len(items))
	if len(items) == 0 {
		return mapping, nil
	}
	for i := range items {
		n := int64(i + 1)
		mapping = append(mapping, IDMapping{Old: items[i].ID.String(), New: n})
		items[i].ID = NewRecordID(n)
	}
	if err := writeCollection(s.livePath, items); err != nil {
		return nil, err
	}
	if err := writeCollection(s.seedPath, items); err != nil {
		return nil, err
	}
	return mapping, nil
}

// mutate runs fn on the freshly loaded collection under the write lock and
// persists its result. Nothing is written when fn fails.
func (s *FileStore) mutate(ctx context.Context, fn func([]Item) ([]Item, error)) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	items, err := readCollection(s.livePath)
	if err != nil {
		return err
	}
	items, err = fn(items)
	if err != nil {
		return err
	}
	if err := writeCollection(s.livePath, items); err != nil {
		return err
	}
	s.metrics.setItems(len(items))
	return nil
}

func (s *FileStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *FileStore) observe(op string, start time.Time, err *error) {
	s.metrics.observeStoreOp(op, time.Since(start), *err)
}

func indexOf(items []Item, id int64) int {
	for i := range items {
		if items[i].ID.Matches(id) {
			return i
		}
	}
	return -1
}

// applyPayload copies the client-owned fields of p onto it. With
// partial=false, tags absent from p reset to empty. A null tags value in a
// partial payload keeps the current tags.
func applyPayload(it *Item, p Payload, partial bool) error {
	if raw, ok := p["name"]; ok {
		if err := json.Unmarshal(raw, &it.Name); err != nil {
			return fmt.Errorf("apply name: %w", err)
		}
	}
	if raw, ok := p["type"]; ok {
		if err := json.Unmarshal(raw, &it.Type); err != nil {
			return fmt.Errorf("apply type: %w", err)
		}
	}
	if raw, ok := p["price"]; ok {
		if err := json.Unmarshal(raw, &it.Price); err != nil {
			return fmt.Errorf("apply price: %w", err)
		}
	}
	if raw, ok := p["in_stock"]; ok {
		if err := json.Unmarshal(raw, &it.InStock); err != nil {
			return fmt.Errorf("apply in_stock: %w", err)
		}
	}
	raw, ok := p["tags"]
	switch {
	case ok && !isNull(raw):
		tags, err := decodeTags(raw)
		if err != nil {
			return fmt.Errorf("apply tags: %w", err)
		}
		it.Tags = tags
	case !ok && !partial:
		it.Tags = []string{}
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	return nil
}
