package resolve

import (
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// Item is one resolved member of a collection. GapBefore marks a discontinuity above it.
type Item[T any] struct {
	Value     T
	GapBefore bool
}

// Page is a resolved collection. Fetched is false when the collection was never loaded,
// which is distinct from a loaded collection with no members.
type Page[T any] struct {
	Key        model.CollectionKey
	Fetched    bool
	Items      []Item[T]
	ReachedEnd bool
	ReadMarker string
}

// Values returns the item values in order.
func (p Page[T]) Values() []T {
	out := make([]T, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Value
	}
	return out
}

// resolvePage resolves the members of key with fn. Members that do not resolve are
// skipped and their gap mark moves to the next resolved member.
func resolvePage[T any](r store.Reader, key model.CollectionKey, fn func(store.Reader, string) (T, bool)) Page[T] {
	page := Page[T]{Key: key}
	c, ok := r.Collection(key.Name)
	if !ok {
		return page
	}
	page.Fetched = true
	page.ReachedEnd = c.ReachedEnd
	page.ReadMarker = c.ReadMarker
	page.Items = make([]Item[T], 0, len(c.Entries))
	carry := false
	for _, e := range c.Entries {
		v, ok := fn(r, e.ID)
		if !ok {
			carry = carry || e.GapBefore
			continue
		}
		page.Items = append(page.Items, Item[T]{Value: v, GapBefore: e.GapBefore || carry})
		carry = false
	}
	return page
}

// StatusPage resolves a status collection.
func StatusPage(r store.Reader, key model.CollectionKey) Page[StatusInfo] {
	return resolvePage(r, key, Status)
}

// AccountPage resolves an account collection with the viewer's satellites of each member.
func AccountPage(r store.Reader, key model.CollectionKey) Page[AccountAndRelationshipInfo] {
	return resolvePage(r, key, AccountAndRelationship)
}

// NotificationPage resolves a notification collection.
func NotificationPage(r store.Reader, key model.CollectionKey) Page[NotificationInfo] {
	return resolvePage(r, key, Notification)
}
