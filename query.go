package main

import (
	"strconv"
	"strings"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListQuery filters and paginates a list read. Type and Q are ignored when
// empty.
type ListQuery struct {
	Type   string
	Q      string
	Limit  int
	Offset int
}

// parseListQuery reads q, type, limit and offset from URL query values.
// Missing or malformed limit and offset fall back to the defaults.
func parseListQuery(get func(string) string) ListQuery {
	q := ListQuery{
		Type:   get("type"),
		Q:      get("q"),
		Limit:  DefaultListLimit,
		Offset: 0,
	}
	if v, err := strconv.Atoi(strings.TrimSpace(get("limit"))); err == nil {
		q.Limit = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(get("offset"))); err == nil {
		q.Offset = v
	}
	return q
}

// queryItems applies q to items. Total counts matches before pagination and
// the page keeps collection order.
func queryItems(items []Item, q ListQuery) ListResult {
	limit := min(max(q.Limit, 0), MaxListLimit)
	offset := max(q.Offset, 0)
	needle := strings.ToLower(q.Q)

	matched := make([]Item, 0, len(items))
	for _, it := range items {
		if q.Type != "" && string(it.Type) != q.Type {
			continue
		}
		if needle != "" && !matchesText(it, needle) {
			continue
		}
		matched = append(matched, it)
	}

	res := ListResult{Total: len(matched), Items: []Item{}}
	if offset >= len(matched) {
		return res
	}
	end := min(offset+limit, len(matched))
	res.Items = matched[offset:end]
	return res
}

func matchesText(it Item, needle string) bool {
	if strings.Contains(strings.ToLower(it.Name), needle) {
		return true
	}
	for _, t := range it.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}
