package store

import (
	"sync/atomic"

	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/repository"
)

// Tx stages one batch of writes. Reads through a Tx see the batch's own writes.
// A Tx is valid only inside the Update callback that received it.
type Tx struct {
	store *Store
	done  atomic.Bool

	accounts      layer[model.Account]
	statuses      layer[model.Status]
	polls         layer[model.Poll]
	relationships layer[model.Relationship]
	notifications layer[model.Notification]
	familiar      layer[model.FamiliarFollowers]
	collections   layer[model.Collection]
}

var _ Reader = (*Tx)(nil)

func newTx(s *Store) *Tx {
	t := s.state
	return &Tx{
		store:         s,
		accounts:      newLayer(model.KindAccount, t.accounts, model.Account.Clone),
		statuses:      newLayer(model.KindStatus, t.statuses, model.Status.Clone),
		polls:         newLayer(model.KindPoll, t.polls, model.Poll.Clone),
		relationships: newLayer(model.KindRelationship, t.relationships, model.Relationship.Clone),
		notifications: newLayer(model.KindNotification, t.notifications, model.Notification.Clone),
		familiar:      newLayer(model.KindFamiliarFollowers, t.familiar, model.FamiliarFollowers.Clone),
		collections:   newLayer(model.KindCollection, t.collections, model.Collection.Clone),
	}
}

func (tx *Tx) check() {
	if tx.done.Load() {
		tx.store.violation("transaction used after its batch finished")
	}
}

func (tx *Tx) Account(id string) (model.Account, bool) {
	tx.check()
	return tx.accounts.get(id)
}

func (tx *Tx) Status(id string) (model.Status, bool) {
	tx.check()
	return tx.statuses.get(id)
}

func (tx *Tx) Poll(id string) (model.Poll, bool) {
	tx.check()
	return tx.polls.get(id)
}

func (tx *Tx) Relationship(accountID string) (model.Relationship, bool) {
	tx.check()
	return tx.relationships.get(accountID)
}

func (tx *Tx) Notification(id string) (model.Notification, bool) {
	tx.check()
	return tx.notifications.get(id)
}

func (tx *Tx) FamiliarFollowers(accountID string) (model.FamiliarFollowers, bool) {
	tx.check()
	return tx.familiar.get(accountID)
}

func (tx *Tx) Collection(name string) (model.Collection, bool) {
	tx.check()
	return tx.collections.get(name)
}

// PutAccount inserts or replaces an account by id.
func (tx *Tx) PutAccount(v model.Account) {
	tx.check()
	tx.accounts.put(v.ID, v)
}

// PutStatus inserts or replaces a status by id.
func (tx *Tx) PutStatus(v model.Status) {
	tx.check()
	tx.statuses.put(v.ID, v)
}

// PutPoll inserts or replaces a poll by id.
func (tx *Tx) PutPoll(v model.Poll) {
	tx.check()
	tx.polls.put(v.ID, v)
}

// PutRelationship inserts or replaces the relationship to account v.ID.
func (tx *Tx) PutRelationship(v model.Relationship) {
	tx.check()
	tx.relationships.put(v.ID, v)
}

// PutNotification inserts or replaces a notification by id.
func (tx *Tx) PutNotification(v model.Notification) {
	tx.check()
	tx.notifications.put(v.ID, v)
}

// PutFamiliarFollowers replaces the familiar followers list of v.AccountID.
func (tx *Tx) PutFamiliarFollowers(v model.FamiliarFollowers) {
	tx.check()
	tx.familiar.put(v.AccountID, v)
}

// PutCollection replaces a collection's membership.
func (tx *Tx) PutCollection(v model.Collection) {
	tx.check()
	tx.collections.put(v.Name, v)
}

func (tx *Tx) DeleteAccount(id string) bool {
	tx.check()
	return tx.accounts.del(id)
}

func (tx *Tx) DeleteStatus(id string) bool {
	tx.check()
	return tx.statuses.del(id)
}

func (tx *Tx) DeletePoll(id string) bool {
	tx.check()
	return tx.polls.del(id)
}

func (tx *Tx) DeleteRelationship(accountID string) bool {
	tx.check()
	return tx.relationships.del(accountID)
}

func (tx *Tx) DeleteNotification(id string) bool {
	tx.check()
	return tx.notifications.del(id)
}

func (tx *Tx) DeleteFamiliarFollowers(accountID string) bool {
	tx.check()
	return tx.familiar.del(accountID)
}

func (tx *Tx) DeleteCollection(name string) bool {
	tx.check()
	return tx.collections.del(name)
}

func (tx *Tx) EachAccount(fn func(model.Account) bool) {
	tx.check()
	tx.accounts.each(func(_ string, v model.Account) bool { return fn(v) })
}

func (tx *Tx) EachStatus(fn func(model.Status) bool) {
	tx.check()
	tx.statuses.each(func(_ string, v model.Status) bool { return fn(v) })
}

func (tx *Tx) EachPoll(fn func(model.Poll) bool) {
	tx.check()
	tx.polls.each(func(_ string, v model.Poll) bool { return fn(v) })
}

func (tx *Tx) EachRelationship(fn func(model.Relationship) bool) {
	tx.check()
	tx.relationships.each(func(_ string, v model.Relationship) bool { return fn(v) })
}

func (tx *Tx) EachNotification(fn func(model.Notification) bool) {
	tx.check()
	tx.notifications.each(func(_ string, v model.Notification) bool { return fn(v) })
}

func (tx *Tx) EachFamiliarFollowers(fn func(model.FamiliarFollowers) bool) {
	tx.check()
	tx.familiar.each(func(_ string, v model.FamiliarFollowers) bool { return fn(v) })
}

func (tx *Tx) EachCollection(fn func(model.Collection) bool) {
	tx.check()
	tx.collections.each(func(_ string, v model.Collection) bool { return fn(v) })
}

// changes computes the net change set and the keys it touches.
func (tx *Tx) changes() (repository.ChangeSet, []model.Key) {
	var (
		cs   repository.ChangeSet
		keys []model.Key
		k    []model.Key
	)
	cs.Accounts, cs.DeletedAccounts, k = tx.accounts.flush()
	keys = append(keys, k...)
	cs.Statuses, cs.DeletedStatuses, k = tx.statuses.flush()
	keys = append(keys, k...)
	cs.Polls, cs.DeletedPolls, k = tx.polls.flush()
	keys = append(keys, k...)
	cs.Relationships, cs.DeletedRelationships, k = tx.relationships.flush()
	keys = append(keys, k...)
	cs.Notifications, cs.DeletedNotifications, k = tx.notifications.flush()
	keys = append(keys, k...)
	cs.Familiar, cs.DeletedFamiliar, k = tx.familiar.flush()
	keys = append(keys, k...)
	cs.Collections, cs.DeletedCollections, k = tx.collections.flush()
	keys = append(keys, k...)
	return cs, keys
}

func (tx *Tx) apply() {
	tx.accounts.apply()
	tx.statuses.apply()
	tx.polls.apply()
	tx.relationships.apply()
	tx.notifications.apply()
	tx.familiar.apply()
	tx.collections.apply()
}
