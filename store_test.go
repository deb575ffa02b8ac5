package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a fixed start time that advances by one second per call.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(time.Second)
	return now
}

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, liveFileName), []byte("[]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, seedFileName), []byte("[]\n"), 0o644))
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewFileStore(dir, WithClock(clock.Now)), dir
}

func newSeededStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, EnsureFiles(dir, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewFileStore(dir, WithClock(clock.Now)), dir
}

func payload(t *testing.T, v any) Payload {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	in := map[string]any{"name": "ThinkPad T14", "type": "laptop", "price": 999.0, "in_stock": true, "tags": []string{"work", "work"}}
	created, err := s.Create(ctx, payload(t, in))
	require.NoError(t, err)

	id, ok := created.ID.Int()
	require.True(t, ok, "id %s should be an integer", created.ID)
	assert.Equal(t, int64(1), id)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	got, err := s.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "ThinkPad T14", got.Name)
	assert.Equal(t, TypeLaptop, got.Type)
	assert.Equal(t, 999.0, got.Price)
	assert.True(t, got.InStock)
	assert.Equal(t, []string{"work", "work"}, got.Tags)
	assert.True(t, got.CreatedAt.Equal(got.UpdatedAt))
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
}

func TestCreateDefaultsTags(t *testing.T) {
	s, _ := newTestStore(t)
	created, err := s.Create(context.Background(), payload(t, map[string]any{"name": "Cable", "type": "accessory", "price": 5, "in_stock": false}))
	require.NoError(t, err)
	assert.Equal(t, []string{}, created.Tags)
}

func TestCreateIDsIncrease(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var last int64
	seen := map[int64]bool{}
	for range 10 {
		it, err := s.Create(ctx, payload(t, map[string]any{"name": "x", "type": "component", "price": 1, "in_stock": true}))
		require.NoError(t, err)
		id, ok := it.ID.Int()
		require.True(t, ok)
		assert.Greater(t, id, last)
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		last = id
	}
}

func TestCreateAfterDeleteDoesNotReuseMax(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	mk := func() Item {
		it, err := s.Create(ctx, payload(t, map[string]any{"name": "x", "type": "phone", "price": 1, "in_stock": true}))
		require.NoError(t, err)
		return it
	}
	mk()
	second := mk()
	require.NoError(t, s.Delete(ctx, "1"))
	third := mk()
	a, _ := second.ID.Int()
	b, _ := third.ID.Int()
	assert.Equal(t, a+1, b)
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	ctx := context.Background()
	s, dir := newSeededStore(t)
	before := readFile(t, filepath.Join(dir, liveFileName))

	_, err := s.Create(ctx, payload(t, map[string]any{"name": "", "type": "unknown", "price": -5, "in_stock": "maybe"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, before, readFile(t, filepath.Join(dir, liveFileName)))
}

func TestPatchPreservesUntouchedFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	orig, err := s.Create(ctx, payload(t, map[string]any{"name": "Pixel", "type": "phone", "price": 799, "in_stock": true, "tags": []string{"android"}}))
	require.NoError(t, err)

	patched, err := s.Patch(ctx, orig.ID.String(), payload(t, map[string]any{"price": 2.5}))
	require.NoError(t, err)

	assert.Equal(t, 2.5, patched.Price)
	assert.True(t, patched.UpdatedAt.After(orig.UpdatedAt))
	assert.Equal(t, orig.ID.String(), patched.ID.String())
	assert.Equal(t, orig.Name, patched.Name)
	assert.Equal(t, orig.Type, patched.Type)
	assert.Equal(t, orig.InStock, patched.InStock)
	assert.Equal(t, orig.Tags, patched.Tags)
	assert.True(t, orig.CreatedAt.Equal(patched.CreatedAt))

	got, err := s.Get(ctx, orig.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Price)
}

func TestPatchNullTagsKeepsTags(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	orig, err := s.Create(ctx, payload(t, map[string]any{"name": "Hub", "type": "accessory", "price": 20, "in_stock": true, "tags": []string{"usb-c"}}))
	require.NoError(t, err)

	patched, err := s.Patch(ctx, orig.ID.String(), Payload{"tags": json.RawMessage("null"), "name": json.RawMessage(`"Hub 2"`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"usb-c"}, patched.Tags)
	assert.Equal(t, "Hub 2", patched.Name)

	_, err = s.Patch(ctx, orig.ID.String(), Payload{"tags": json.RawMessage(`"usb-c"`)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPatchIgnoresImmutableFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	orig, err := s.Create(ctx, payload(t, map[string]any{"name": "Hub", "type": "accessory", "price": 20, "in_stock": true}))
	require.NoError(t, err)

	patched, err := s.Patch(ctx, "1", Payload{
		"id":        json.RawMessage(`99`),
		"createdAt": json.RawMessage(`"2000-01-01T00:00:00Z"`),
		"color":     json.RawMessage(`"red"`),
	})
	require.NoError(t, err)
	assert.Equal(t, orig.ID.String(), patched.ID.String())
	assert.True(t, orig.CreatedAt.Equal(patched.CreatedAt))
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	orig, err := s.Create(ctx, payload(t, map[string]any{"name": "Pixel", "type": "phone", "price": 799, "in_stock": true, "tags": []string{"android"}}))
	require.NoError(t, err)

	replaced, err := s.Replace(ctx, "1", payload(t, map[string]any{"name": "Pixel Pro", "type": "phone", "price": 999, "in_stock": false}))
	require.NoError(t, err)
	assert.Equal(t, orig.ID.String(), replaced.ID.String())
	assert.Equal(t, "Pixel Pro", replaced.Name)
	assert.False(t, replaced.InStock)
	assert.Equal(t, []string{}, replaced.Tags)
	assert.True(t, replaced.CreatedAt.Equal(orig.CreatedAt))
	assert.True(t, replaced.UpdatedAt.After(orig.UpdatedAt))

	_, err = s.Replace(ctx, "1", payload(t, map[string]any{"name": "Pixel Pro"}))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindMissingField, verr.Kind)
}

func TestMissingIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newSeededStore(t)
	full := payload(t, map[string]any{"name": "x", "type": "phone", "price": 1, "in_stock": true})

	for _, id := range []string{"42", "0", "-1", "abc", "1.5", "", "1e2", " 1"} {
		_, err := s.Get(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound, "get %q", id)
		_, err = s.Replace(ctx, id, full)
		assert.ErrorIs(t, err, ErrNotFound, "replace %q", id)
		_, err = s.Patch(ctx, id, Payload{})
		assert.ErrorIs(t, err, ErrNotFound, "patch %q", id)
		assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound, "delete %q", id)
	}
}

func TestValidationBeforeNotFound(t *testing.T) {
	s, _ := newSeededStore(t)
	_, err := s.Replace(context.Background(), "999", payload(t, map[string]any{"name": "x"}))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateDeleteThenNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, err := s.Create(ctx, payload(t, map[string]any{"name": "A", "type": "laptop", "price": 999, "in_stock": true}))
	require.NoError(t, err)
	_, ok := a.ID.Int()
	require.True(t, ok)
	assert.True(t, a.CreatedAt.Equal(a.UpdatedAt))

	require.NoError(t, s.Delete(ctx, a.ID.String()))
	_, err = s.Get(ctx, a.ID.String())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, a.ID.String()), ErrNotFound)
}

func TestListByType(t *testing.T) {
	ctx := context.Background()
	s, _ := newSeededStore(t)

	res, err := s.List(ctx, ListQuery{Type: "phone", Limit: DefaultListLimit})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TypePhone, res.Items[0].Type)

	res, err = s.List(ctx, ListQuery{Limit: DefaultListLimit})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}

func TestStringIDsLookup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := readFile(t, filepath.Join("testdata", "seed_string_ids.json"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, liveFileName), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, seedFileName), data, 0o644))
	s := NewFileStore(dir)

	got, err := s.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Legacy Router", got.Name)

	created, err := s.Create(ctx, payload(t, map[string]any{"name": "New", "type": "phone", "price": 1, "in_stock": true}))
	require.NoError(t, err)
	assert.Equal(t, "8", created.ID.String())

	// The string id survives a rewrite untouched.
	items, err := readCollection(filepath.Join(dir, liveFileName))
	require.NoError(t, err)
	raw, err := json.Marshal(items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, `"7"`, string(raw))
	assert.Equal(t, []string{}, items[1].Tags)
}

func TestCreateFailsWhenIDSpaceExhausted(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)
	live := []byte(`[{"id": "1e19", "name": "Huge", "type": "service", "price": 1, "in_stock": true, "tags": []}]` + "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, liveFileName), live, 0o644))

	for range 2 {
		_, err := s.Create(ctx, payload(t, map[string]any{"name": "x", "type": "phone", "price": 1, "in_stock": true}))
		assert.ErrorIs(t, err, ErrIDSpaceExhausted)
	}
	assert.Equal(t, live, readFile(t, filepath.Join(dir, liveFileName)))

	res, err := s.List(ctx, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestCorruptStore(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, liveFileName), []byte(`{"not": "an array"}`), 0o644))

	_, err := s.List(ctx, ListQuery{Limit: 10})
	var cse *CorruptStoreError
	require.ErrorAs(t, err, &cse)
	assert.Equal(t, filepath.Join(dir, liveFileName), cse.Path)

	_, err = s.Create(ctx, payload(t, map[string]any{"name": "x", "type": "phone", "price": 1, "in_stock": true}))
	require.ErrorAs(t, err, &cse)
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, dir := newSeededStore(t)
	seed := readFile(t, filepath.Join(dir, seedFileName))

	_, err := s.Create(ctx, payload(t, map[string]any{"name": "Extra", "type": "service", "price": 10, "in_stock": true}))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "1"))

	require.NoError(t, s.Reset(ctx))
	once := readFile(t, filepath.Join(dir, liveFileName))
	require.NoError(t, s.Reset(ctx))
	twice := readFile(t, filepath.Join(dir, liveFileName))

	assert.Equal(t, seed, once)
	assert.Equal(t, once, twice)
}

func TestResetRejectsCorruptSeed(t *testing.T) {
	ctx := context.Background()
	s, dir := newSeededStore(t)
	live := readFile(t, filepath.Join(dir, liveFileName))
	require.NoError(t, os.WriteFile(filepath.Join(dir, seedFileName), []byte("not json"), 0o644))

	var cse *CorruptStoreError
	require.ErrorAs(t, s.Reset(ctx), &cse)
	assert.Equal(t, filepath.Join(dir, seedFileName), cse.Path)
	assert.Equal(t, live, readFile(t, filepath.Join(dir, liveFileName)))
}

func TestRenumberIDs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	data := readFile(t, filepath.Join("testdata", "seed_string_ids.json"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, liveFileName), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, seedFileName), []byte("[]\n"), 0o644))
	s := NewFileStore(dir)

	mapping, err := s.RenumberIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []IDMapping{
		{Old: "7", New: 1},
		{Old: "3", New: 2},
		{Old: "b7c1e2a0-uuid", New: 3},
	}, mapping)

	live, err := readCollection(filepath.Join(dir, liveFileName))
	require.NoError(t, err)
	seed, err := readCollection(filepath.Join(dir, seedFileName))
	require.NoError(t, err)
	assert.Equal(t, live, seed)
	for i, it := range live {
		id, ok := it.ID.Int()
		require.True(t, ok)
		assert.Equal(t, int64(i+1), id)
	}
	assert.Equal(t, "Legacy Router", live[0].Name)
}

func TestRenumberEmpty(t *testing.T) {
	s, dir := newTestStore(t)
	before, err := os.Stat(filepath.Join(dir, seedFileName))
	require.NoError(t, err)

	mapping, err := s.RenumberIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mapping)

	after, err := os.Stat(filepath.Join(dir, seedFileName))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestConcurrentCreatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	const n = 25
	p := payload(t, map[string]any{"name": "c", "type": "component", "price": 1, "in_stock": true})
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, p)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	res, err := s.List(ctx, ListQuery{Limit: MaxListLimit})
	require.NoError(t, err)
	assert.Equal(t, n, res.Total)
	ids := map[int64]bool{}
	for _, it := range res.Items {
		id, ok := it.ID.Int()
		require.True(t, ok)
		ids[id] = true
	}
	assert.Len(t, ids, n)
}

func TestMutateHonoursContext(t *testing.T) {
	s, _ := newTestStore(t)
	l := newLocalLocker()
	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()
	s.locker = l

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Create(ctx, payload(t, map[string]any{"name": "c", "type": "component", "price": 1, "in_stock": true}))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestStoreMetrics(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, EnsureFiles(dir, time.Now()))
	m := NewMetrics()
	s := NewFileStore(dir, WithMetrics(m))

	_, err := s.Create(ctx, payload(t, map[string]any{"name": "c", "type": "component", "price": 1, "in_stock": true}))
	require.NoError(t, err)
	_, err = s.Get(ctx, "404")
	require.ErrorIs(t, err, ErrNotFound)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	found := map[string]float64{}
	for _, f := range families {
		switch f.GetName() {
		case "inventory_store_items":
			found["items"] = f.GetMetric()[0].GetGauge().GetValue()
		case "inventory_store_operations_total":
			for _, mm := range f.GetMetric() {
				key := ""
				for _, l := range mm.GetLabel() {
					key += l.GetValue() + "/"
				}
				found[key] = mm.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 4.0, found["items"])
	assert.Equal(t, 1.0, found["create/success/"])
	assert.Equal(t, 1.0, found["get/not_found/"])
}
