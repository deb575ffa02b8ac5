package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// demoItems are created by add-items when no item with the same name and
// type exists.
var demoItems = []ItemInput{
	{Name: "Demo Laptop", Type: TypeLaptop, Price: 999.0, InStock: true, Tags: []string{"demo", "laptop"}},
	{Name: "Demo Phone", Type: TypePhone, Price: 499.0, InStock: true, Tags: []string{"demo", "phone"}},
	{Name: "Demo Cable", Type: TypeAccessory, Price: 9.99, InStock: true, Tags: []string{"demo", "cable"}},
	{Name: "Demo Component", Type: TypeComponent, Price: 29.99, InStock: false, Tags: []string{"demo", "component"}},
	{Name: "Demo Service", Type: TypeService, Price: 199.0, InStock: true, Tags: []string{"demo", "service"}},
}

// scanLimit is the page size used when a command needs every item.
const scanLimit = MaxListLimit

// listAll pages through the whole collection.
func listAll(ctx context.Context, c *APIClient) ([]Item, int, error) {
	var all []Item
	total := 0
	for offset := 0; ; {
		page, err := c.List(ctx, ListQuery{Limit: scanLimit, Offset: offset})
		if err != nil {
			return nil, 0, err
		}
		total = page.Total
		all = append(all, page.Items...)
		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			break
		}
	}
	return all, total, nil
}

// addDemoItems creates the demo items that are missing, keyed by name and
// type.
func addDemoItems(ctx context.Context, c *APIClient, w io.Writer) (int, error) {
	items, _, err := listAll(ctx, c)
	if err != nil {
		return 0, err
	}
	existing := make(map[string]struct{}, len(items))
	for _, it := range items {
		existing[it.Name+"::"+string(it.Type)] = struct{}{}
	}

	created := 0
	var errs []error
	for _, cand := range demoItems {
		if _, ok := existing[cand.Name+"::"+string(cand.Type)]; ok {
			fmt.Fprintf(w, "Skipping existing: %s\n", cand.Name)
			continue
		}
		it, err := c.Create(ctx, cand)
		if err != nil {
			fmt.Fprintf(w, "Failed to create %s: %v\n", cand.Name, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Created: %s %s\n", it.ID, it.Name)
		created++
	}
	fmt.Fprintf(w, "Done: created %d items (skipped %d)\n", created, len(demoItems)-created)
	return created, errors.Join(errs...)
}

// deleteRandomItem deletes one listed item chosen by pick, which returns an
// index in [0, n).
func deleteRandomItem(ctx context.Context, c *APIClient, w io.Writer, pick func(n int) int) error {
	items, _, err := listAll(ctx, c)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No items to delete.")
		return nil
	}
	it := items[pick(len(items))]
	fmt.Fprintf(w, "Deleting id=%s name=%s\n", it.ID, it.Name)
	if err := c.Delete(ctx, it.ID.String()); err != nil {
		return err
	}
	fmt.Fprintln(w, "Deleted.")
	return nil
}

func randomIndex(n int) int {
	return rand.IntN(n)
}

// writeReport prints totals, per-type counts, the average price, the out of
// stock count and up to ten sample items.
func writeReport(ctx context.Context, c *APIClient, w io.Writer) error {
	items, total, err := listAll(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Item Report")
	fmt.Fprintln(w, "============")
	fmt.Fprintf(w, "Total items: %d\n", total)

	var order []ItemType
	counts := map[ItemType]int{}
	sum := 0.0
	outOfStock := 0
	for _, it := range items {
		if _, ok := counts[it.Type]; !ok {
			order = append(order, it.Type)
		}
		counts[it.Type]++
		sum += it.Price
		if !it.InStock {
			outOfStock++
		}
	}
	fmt.Fprintln(w, "Count by type:")
	for _, t := range order {
		fmt.Fprintf(w, "  %s: %d\n", t, counts[t])
	}
	avg := 0.0
	if len(items) > 0 {
		avg = sum / float64(len(items))
	}
	fmt.Fprintf(w, "Average price: %.2f\n", avg)
	fmt.Fprintf(w, "Out of stock: %d\n", outOfStock)

	fmt.Fprintln(w, "Sample items (up to 10):")
	for _, it := range items[:min(10, len(items))] {
		stock := ""
		if !it.InStock {
			stock = "(out)"
		}
		fmt.Fprintf(w, "  %s - %s (%s) $%g %s tags:%s\n", it.ID, it.Name, it.Type, it.Price, stock, strings.Join(it.Tags, ","))
	}
	return nil
}

// runRegression walks the API through reset, list, create, get, patch,
// replace and delete, failing on the first unexpected answer.
func runRegression(ctx context.Context, c *APIClient, w io.Writer) error {
	step := func(name string) { fmt.Fprintf(w, "Regression test: %s\n", name) }

	step("resetting DB")
	if err := c.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	step("listing items")
	if _, err := c.List(ctx, ListQuery{Limit: scanLimit}); err != nil {
		return fmt.Errorf("list: %w", err)
	}

	step("creating an item")
	name := fmt.Sprintf("contract-item-%d", time.Now().UnixMilli())
	created, err := c.Create(ctx, ItemInput{Name: name, Type: TypeAccessory, Price: 1.23, InStock: true})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if _, ok := created.ID.Int(); !ok {
		return fmt.Errorf("create: id %s is not an integer", created.ID)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		return fmt.Errorf("create: createdAt %s != updatedAt %s", created.CreatedAt, created.UpdatedAt)
	}
	id := created.ID.String()

	step("GET /items/:id")
	got, err := c.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	if got.Name != name {
		return fmt.Errorf("get: name %q, want %q", got.Name, name)
	}

	step("PATCH /items/:id")
	patched, err := c.Patch(ctx, id, map[string]any{"price": 2.5})
	if err != nil {
		return fmt.Errorf("patch: %w", err)
	}
	if patched.Price != 2.5 || patched.Name != name {
		return fmt.Errorf("patch: got price %g name %q", patched.Price, patched.Name)
	}

	step("PUT /items/:id (replace)")
	put := ItemInput{Name: name + "-v2", Type: TypeAccessory, Price: 3.5, InStock: false}
	replaced, err := c.Replace(ctx, id, put)
	if err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	if replaced.Name != put.Name || replaced.InStock {
		return fmt.Errorf("replace: got name %q in_stock %t", replaced.Name, replaced.InStock)
	}
	if !replaced.CreatedAt.Equal(created.CreatedAt) {
		return fmt.Errorf("replace: createdAt changed from %s to %s", created.CreatedAt, replaced.CreatedAt)
	}

	step("DELETE /items/:id")
	if err := c.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	_, err = c.Get(ctx, id)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		return fmt.Errorf("get after delete: want 404, got %v", err)
	}

	fmt.Fprintln(w, "Regression test: OK")
	return nil
}
