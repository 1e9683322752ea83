// Package resolve assembles composite views from the flat entity tables.
//
// Each view declares its satellites as a list of Relation descriptors. The
// resolver interprets them against one store.Reader: it follows the join keys,
// drops targets that are not cached yet, orders collection relations and
// enforces cardinality. Missing optional satellites are absent, never placeholders.
package resolve

import (
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// Cardinality of a relation.
type Cardinality int

const (
	// One is a required reference: when its target is missing the root does not resolve.
	One Cardinality = iota
	// Optional is zero or one target.
	Optional
	// Many is zero or more targets.
	Many
)

// Ordering of the targets of a Many relation.
type Ordering int

// InsertionOrder keeps the order the join yields, which is the server's order.
const InsertionOrder Ordering = iota

// Relation declares one satellite of a root record of type R.
type Relation[R any] struct {
	Name   string
	Card   Cardinality
	Target model.Kind
	// Join returns the foreign keys of the satellite. An empty result means the root has none.
	Join  func(root R, r store.Reader) []string
	Order Ordering
}

// resolved holds, per relation name, the ids of targets present in the store.
type resolved map[string][]string

func (res resolved) first(name string) (string, bool) {
	ids := res[name]
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// interpret runs rels against root. ok is false when a One relation has a key whose target is missing.
func interpret[R any](r store.Reader, root R, rels []Relation[R]) (res resolved, ok bool) {
	res = make(resolved, len(rels))
	for _, rel := range rels {
		keys := rel.Join(root, r)
		ids := make([]string, 0, len(keys))
		for _, id := range keys {
			if id == "" || !exists(r, rel.Target, id) {
				continue
			}
			ids = append(ids, id)
		}
		switch rel.Card {
		case One:
			if len(keys) > 0 && len(ids) == 0 {
				return nil, false
			}
			ids = ids[:min(len(ids), 1)]
		case Optional:
			ids = ids[:min(len(ids), 1)]
		}
		res[rel.Name] = ids
	}
	return res, true
}

func exists(r store.Reader, kind model.Kind, id string) bool {
	var ok bool
	switch kind {
	case model.KindAccount:
		_, ok = r.Account(id)
	case model.KindStatus:
		_, ok = r.Status(id)
	case model.KindPoll:
		_, ok = r.Poll(id)
	case model.KindRelationship:
		_, ok = r.Relationship(id)
	case model.KindNotification:
		_, ok = r.Notification(id)
	case model.KindFamiliarFollowers:
		_, ok = r.FamiliarFollowers(id)
	case model.KindCollection:
		_, ok = r.Collection(id)
	}
	return ok
}

func key(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}
