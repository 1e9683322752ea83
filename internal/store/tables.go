package store

import (
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/repository"
)

// Reader reads one consistent state of the store.
// Absent rows report ok == false; that is "not fetched", never an error.
// Returned records are copies; changing them does not change the store.
type Reader interface {
	Account(id string) (model.Account, bool)
	Status(id string) (model.Status, bool)
	Poll(id string) (model.Poll, bool)
	Relationship(accountID string) (model.Relationship, bool)
	Notification(id string) (model.Notification, bool)
	FamiliarFollowers(accountID string) (model.FamiliarFollowers, bool)
	Collection(name string) (model.Collection, bool)
}

// tables is the committed state: one flat keyed table per entity type.
type tables struct {
	accounts      map[string]model.Account
	statuses      map[string]model.Status
	polls         map[string]model.Poll
	relationships map[string]model.Relationship
	notifications map[string]model.Notification
	familiar      map[string]model.FamiliarFollowers
	collections   map[string]model.Collection
}

func newTables() *tables {
	return &tables{
		accounts:      map[string]model.Account{},
		statuses:      map[string]model.Status{},
		polls:         map[string]model.Poll{},
		relationships: map[string]model.Relationship{},
		notifications: map[string]model.Notification{},
		familiar:      map[string]model.FamiliarFollowers{},
		collections:   map[string]model.Collection{},
	}
}

func (t *tables) load(cs repository.ChangeSet) {
	for _, v := range cs.Accounts {
		t.accounts[v.ID] = v.Clone()
	}
	for _, v := range cs.Statuses {
		t.statuses[v.ID] = v.Clone()
	}
	for _, v := range cs.Polls {
		t.polls[v.ID] = v.Clone()
	}
	for _, v := range cs.Relationships {
		t.relationships[v.ID] = v.Clone()
	}
	for _, v := range cs.Notifications {
		t.notifications[v.ID] = v.Clone()
	}
	for _, v := range cs.Familiar {
		t.familiar[v.AccountID] = v.Clone()
	}
	for _, v := range cs.Collections {
		t.collections[v.Name] = v.Clone()
	}
}

func (t *tables) Account(id string) (model.Account, bool) {
	v, ok := t.accounts[id]
	return v.Clone(), ok
}

func (t *tables) Status(id string) (model.Status, bool) {
	v, ok := t.statuses[id]
	return v.Clone(), ok
}

func (t *tables) Poll(id string) (model.Poll, bool) {
	v, ok := t.polls[id]
	return v.Clone(), ok
}

func (t *tables) Relationship(accountID string) (model.Relationship, bool) {
	v, ok := t.relationships[accountID]
	return v.Clone(), ok
}

func (t *tables) Notification(id string) (model.Notification, bool) {
	v, ok := t.notifications[id]
	return v.Clone(), ok
}

func (t *tables) FamiliarFollowers(accountID string) (model.FamiliarFollowers, bool) {
	v, ok := t.familiar[accountID]
	return v.Clone(), ok
}

func (t *tables) Collection(name string) (model.Collection, bool) {
	v, ok := t.collections[name]
	return v.Clone(), ok
}

// Stats counts rows per table.
type Stats struct {
	Accounts          int `yaml:"accounts"`
	Statuses          int `yaml:"statuses"`
	Polls             int `yaml:"polls"`
	Relationships     int `yaml:"relationships"`
	Notifications     int `yaml:"notifications"`
	FamiliarFollowers int `yaml:"familiar_followers"`
	Collections       int `yaml:"collections"`
}

func (t *tables) stats() Stats {
	return Stats{
		Accounts:          len(t.accounts),
		Statuses:          len(t.statuses),
		Polls:             len(t.polls),
		Relationships:     len(t.relationships),
		Notifications:     len(t.notifications),
		FamiliarFollowers: len(t.familiar),
		Collections:       len(t.collections),
	}
}
