package main

import (
	"encoding/json"
	"time"
)

// ItemType is the category of a catalog item.
type ItemType string

const (
	TypeLaptop    ItemType = "laptop"
	TypePhone     ItemType = "phone"
	TypeAccessory ItemType = "accessory"
	TypeComponent ItemType = "component"
	TypeService   ItemType = "service"
)

// ItemTypes lists the accepted item types in display order.
var ItemTypes = []ItemType{TypeLaptop, TypePhone, TypeAccessory, TypeComponent, TypeService}

// Valid reports whether t is one of ItemTypes.
func (t ItemType) Valid() bool {
	for _, v := range ItemTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Item represents a catalog record as persisted and served.
type Item struct {
	ID        RecordID  `json:"id"`
	Name      string    `json:"name"`
	Type      ItemType  `json:"type"`
	Price     float64   `json:"price"`
	InStock   bool      `json:"in_stock"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Payload is a create, replace or patch request body keyed by field name.
// Keeping the raw values lets validation tell an absent field from a zero one.
type Payload map[string]json.RawMessage

// ItemInput is the client-supplied part of an Item, used by API clients.
type ItemInput struct {
	Name    string   `json:"name"`
	Type    ItemType `json:"type"`
	Price   float64  `json:"price"`
	InStock bool     `json:"in_stock"`
	Tags    []string `json:"tags,omitempty"`
}

// ListResult is the response of a list query.
type ListResult struct {
	Total int    `json:"total"`
	Items []Item `json:"items"`
}

// IDMapping records one renumbered item.
type IDMapping struct {
	Old string `json:"old"`
	New int64  `json:"new"`
}
