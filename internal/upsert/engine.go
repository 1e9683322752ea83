// Package upsert merges fetched entities into the entity store.
//
// Every record is written by full replace except Status, whose local-only
// overrides are carried over from the cached row unless the payload sets them,
// and the sparse poll and relationship patches.
package upsert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/convert"
	"github.com/and161185/fedicache/internal/entity"
	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// Engine applies batches and local mutations to one store.
type Engine struct {
	store *store.Store
	log   *zap.Logger
}

// New constructs an engine over s.
func New(s *store.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, log: log}
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// Apply validates b and writes it as one batch. A malformed entity rejects the whole batch.
func (e *Engine) Apply(ctx context.Context, b Batch) error {
	if err := b.Validate(); err != nil {
		e.log.Debug("batch rejected", zap.Error(err))
		return err
	}
	return e.store.Update(ctx, func(tx *store.Tx) error {
		return stage(tx, b)
	})
}

// Stage validates b and writes it into an open transaction, so callers can
// combine entities with other writes in one batch.
func (e *Engine) Stage(tx *store.Tx, b Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return stage(tx, b)
}

func stage(tx *store.Tx, b Batch) error {
	for _, a := range b.Accounts {
		putAccount(tx, a)
	}
	for _, p := range b.Polls {
		tx.PutPoll(convert.PollRecord(p))
	}
	for _, s := range b.Statuses {
		putStatus(tx, s)
	}
	for _, r := range b.Relationships {
		tx.PutRelationship(r)
	}
	for _, n := range b.Notifications {
		putAccount(tx, n.Account)
		if n.Status != nil {
			putStatus(tx, *n.Status)
		}
		tx.PutNotification(convert.NotificationRecord(n))
	}
	for _, f := range b.FamiliarFollowers {
		for _, a := range f.Accounts {
			putAccount(tx, a)
		}
		tx.PutFamiliarFollowers(convert.FamiliarFollowersRecord(f))
	}
	for i, p := range b.PollPatches {
		if err := patchPoll(tx, p); err != nil {
			return fmt.Errorf("poll_patches[%d]: %w", i, err)
		}
	}
	for i, p := range b.RelationshipPatches {
		if err := patchRelationship(tx, p); err != nil {
			return fmt.Errorf("relationship_patches[%d]: %w", i, err)
		}
	}
	return nil
}

// putAccount writes a and, one level at a time, the accounts it moved to.
func putAccount(tx *store.Tx, a entity.Account) {
	for cur := &a; cur != nil; cur = cur.Moved {
		tx.PutAccount(convert.AccountRecord(*cur))
	}
}

// putStatus writes s with its author, poll and reblogged status.
func putStatus(tx *store.Tx, s entity.Status) {
	putAccount(tx, s.Account)
	if s.Reblog != nil {
		putStatus(tx, *s.Reblog)
	}
	if s.Poll != nil {
		tx.PutPoll(convert.PollRecord(*s.Poll))
	}

	rec := convert.StatusRecord(s)
	cached, ok := tx.Status(s.ID)
	if ok && isStale(rec, cached) {
		return
	}
	rec.Local = mergeOverrides(s, cached, ok)
	tx.PutStatus(rec)
}

// isStale reports whether incoming predates an edit already cached.
func isStale(incoming, cached model.Status) bool {
	if cached.EditedAt == nil {
		return false
	}
	if incoming.EditedAt == nil {
		return true
	}
	return incoming.EditedAt.Before(*cached.EditedAt)
}

// mergeOverrides computes the local fields of an incoming status. Fields set in
// the payload win; otherwise the cached values are kept. A first sighting starts
// from the defaults: content hidden behind a spoiler, attachments hidden when sensitive.
func mergeOverrides(s entity.Status, cached model.Status, exists bool) model.Overrides {
	var local model.Overrides
	if exists {
		local = cached.Local
	} else {
		local.ContentHidden = s.SpoilerText != ""
		local.AttachmentsHidden = s.Sensitive
	}
	if s.ContentHidden != nil {
		local.ContentHidden = *s.ContentHidden
	}
	if s.AttachmentsHidden != nil {
		local.AttachmentsHidden = *s.AttachmentsHidden
	}
	if s.Source != nil {
		src := *s.Source
		local.Source = &src
	}
	return local
}

func patchPoll(tx *store.Tx, p PollPatch) error {
	poll, ok := tx.Poll(p.ID)
	if !ok {
		return fmt.Errorf("poll %q: %w", p.ID, errs.ErrNotFound)
	}
	next, err := p.apply(poll)
	if err != nil {
		return err
	}
	tx.PutPoll(next)
	return nil
}

func patchRelationship(tx *store.Tx, p RelationshipPatch) error {
	rel, ok := tx.Relationship(p.ID)
	if !ok {
		return fmt.Errorf("relationship %q: %w", p.ID, errs.ErrNotFound)
	}
	tx.PutRelationship(p.apply(rel))
	return nil
}
