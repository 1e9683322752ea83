package live

import (
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// tracker records every key a query reads, present or not, so that a later
// insert of a missing row wakes the query too.
type tracker struct {
	r    store.Reader
	keys map[model.Key]struct{}
}

var _ store.Reader = (*tracker)(nil)

func newTracker(r store.Reader) *tracker {
	return &tracker{r: r, keys: map[model.Key]struct{}{}}
}

func (t *tracker) add(k model.Key) { t.keys[k] = struct{}{} }

func (t *tracker) list() []model.Key {
	out := make([]model.Key, 0, len(t.keys))
	for k := range t.keys {
		out = append(out, k)
	}
	return out
}

func (t *tracker) Account(id string) (model.Account, bool) {
	t.add(model.AccountKey(id))
	return t.r.Account(id)
}

func (t *tracker) Status(id string) (model.Status, bool) {
	t.add(model.StatusKey(id))
	return t.r.Status(id)
}

func (t *tracker) Poll(id string) (model.Poll, bool) {
	t.add(model.PollKey(id))
	return t.r.Poll(id)
}

func (t *tracker) Relationship(accountID string) (model.Relationship, bool) {
	t.add(model.RelationshipKey(accountID))
	return t.r.Relationship(accountID)
}

func (t *tracker) Notification(id string) (model.Notification, bool) {
	t.add(model.NotificationKey(id))
	return t.r.Notification(id)
}

func (t *tracker) FamiliarFollowers(accountID string) (model.FamiliarFollowers, bool) {
	t.add(model.FamiliarFollowersKey(accountID))
	return t.r.FamiliarFollowers(accountID)
}

func (t *tracker) Collection(name string) (model.Collection, bool) {
	t.add(model.CollectionRowKey(name))
	return t.r.Collection(name)
}
