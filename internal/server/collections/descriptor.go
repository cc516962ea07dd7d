package collections

import (
	"fmt"

	"github.com/zhinian/blogstore/internal/common"
)

// RefBy says how a cross-collection reference resolves.
type RefBy int

const (
	// ByID matches the referenced record's id (string-compared).
	ByID RefBy = iota
	// ByName matches the referenced record's name field.
	ByName
)

// Reference declares a foreign-key-like field on one record kind that must
// resolve to a record in another collection.
type Reference struct {
	Field      string // field on this kind holding the reference
	Collection string // referenced collection
	By         RefBy
	Multi      bool // the field holds a list of references
}

// Descriptor describes one collection kind: its storage shape and the rules
// the integrity checker applies to its records.
type Descriptor struct {
	Name      string
	Singleton bool
	Required  []string
	Numeric   []string // optional fields that must hold a number when set
	Enums     map[string][]string
	Refs      []Reference
}

// UserRoles are the legal values of the users.role field.
var UserRoles = []string{"super_admin", "admin", "editor", "viewer"}

// registry is the fixed, ordered set of known collections. Order is the
// order reports and seeds are processed in.
var registry = []Descriptor{
	{
		Name:     "articles",
		Required: []string{"title", "content"},
		Numeric:  []string{"views"},
		Refs: []Reference{
			{Field: "category", Collection: "categories", By: ByName},
			{Field: "tags", Collection: "tags", By: ByName, Multi: true},
		},
	},
	{Name: "categories", Required: []string{"name"}, Numeric: []string{"count"}},
	{Name: "tags", Required: []string{"name"}, Numeric: []string{"count"}},
	{
		Name:     "comments",
		Required: []string{"content", "articleId"},
		Refs: []Reference{
			{Field: "articleId", Collection: "articles", By: ByID},
		},
	},
	{Name: "guestbook", Required: []string{"content"}},
	{
		Name:     "users",
		Required: []string{"username", "role"},
		Enums:    map[string][]string{"role": UserRoles},
	},
	{Name: "images"},
	{Name: "music"},
	{Name: "videos"},
	{Name: "links"},
	{Name: "apps"},
	{Name: "events"},
	{Name: "settings", Singleton: true},
}

// All returns the descriptors in registry order.
func All() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Lookup resolves a collection name, rejecting names outside the fixed set.
func Lookup(name string) (Descriptor, error) {
	for _, d := range registry {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("collection %q: %w", name, common.ErrUnknownCollection)
}
