// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/fedicache/internal/model"
)

// ContentRepository persists one identity's entity tables.
type ContentRepository interface {
	// Load returns every stored row as a change set of puts.
	Load(ctx context.Context) (ChangeSet, error)
	// Apply writes all puts and deletes of a committed batch atomically.
	Apply(ctx context.Context, cs ChangeSet) error
	// Close releases the underlying database.
	Close() error
}

// ChangeSet is the net effect of one batch: rows to write and ids to delete, per table.
type ChangeSet struct {
	Accounts      []model.Account
	Statuses      []model.Status
	Polls         []model.Poll
	Relationships []model.Relationship
	Notifications []model.Notification
	Familiar      []model.FamiliarFollowers
	Collections   []model.Collection

	DeletedAccounts      []string
	DeletedStatuses      []string
	DeletedPolls         []string
	DeletedRelationships []string
	DeletedNotifications []string
	DeletedFamiliar      []string
	DeletedCollections   []string
}

// Empty reports whether the change set writes nothing.
func (cs ChangeSet) Empty() bool {
	return cs.Len() == 0
}

// Len counts rows written or deleted.
func (cs ChangeSet) Len() int {
	return len(cs.Accounts) + len(cs.Statuses) + len(cs.Polls) + len(cs.Relationships) +
		len(cs.Notifications) + len(cs.Familiar) + len(cs.Collections) +
		len(cs.DeletedAccounts) + len(cs.DeletedStatuses) + len(cs.DeletedPolls) +
		len(cs.DeletedRelationships) + len(cs.DeletedNotifications) + len(cs.DeletedFamiliar) +
		len(cs.DeletedCollections)
}
