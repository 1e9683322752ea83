package upsert

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/entity"
	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// ToggleContentHidden flips the content-hidden override of a status and returns the new value.
func (e *Engine) ToggleContentHidden(ctx context.Context, statusID string) (bool, error) {
	var hidden bool
	err := e.updateStatus(ctx, statusID, func(s *model.Status) {
		s.Local.ContentHidden = !s.Local.ContentHidden
		hidden = s.Local.ContentHidden
	})
	return hidden, err
}

// ToggleAttachmentsHidden flips the attachments-hidden override of a status and returns the new value.
func (e *Engine) ToggleAttachmentsHidden(ctx context.Context, statusID string) (bool, error) {
	var hidden bool
	err := e.updateStatus(ctx, statusID, func(s *model.Status) {
		s.Local.AttachmentsHidden = !s.Local.AttachmentsHidden
		hidden = s.Local.AttachmentsHidden
	})
	return hidden, err
}

// SetStatusSource caches the editable source of a status.
func (e *Engine) SetStatusSource(ctx context.Context, statusID string, src model.StatusSource) error {
	return e.updateStatus(ctx, statusID, func(s *model.Status) {
		s.Local.Source = &src
	})
}

func (e *Engine) updateStatus(ctx context.Context, id string, fn func(*model.Status)) error {
	return e.store.Update(ctx, func(tx *store.Tx) error {
		s, ok := tx.Status(id)
		if !ok {
			return fmt.Errorf("status %q: %w", id, errs.ErrNotFound)
		}
		fn(&s)
		tx.PutStatus(s)
		return nil
	})
}

// RecordVote marks choices as the viewer's vote on a poll until a server poll replaces it.
// Tallies are raised locally so the result is visible immediately.
func (e *Engine) RecordVote(ctx context.Context, pollID string, choices []int) error {
	if len(choices) == 0 {
		return fmt.Errorf("%w: no choices", errs.ErrInvalidArgument)
	}
	return e.store.Update(ctx, func(tx *store.Tx) error {
		p, ok := tx.Poll(pollID)
		if !ok {
			return fmt.Errorf("poll %q: %w", pollID, errs.ErrNotFound)
		}
		if p.Expired || p.Voted {
			return fmt.Errorf("%w: poll %q is closed to voting", errs.ErrInvalidArgument, pollID)
		}
		if !p.Multiple && len(choices) > 1 {
			return fmt.Errorf("%w: poll %q takes one choice", errs.ErrInvalidArgument, pollID)
		}

		options := append([]model.PollOption(nil), p.Options...)
		seen := make(map[int]struct{}, len(choices))
		for _, c := range choices {
			if c < 0 || c >= len(options) {
				return fmt.Errorf("%w: choice %d out of range", errs.ErrInvalidArgument, c)
			}
			if _, dup := seen[c]; dup {
				return fmt.Errorf("%w: choice %d repeated", errs.ErrInvalidArgument, c)
			}
			seen[c] = struct{}{}
			options[c].VotesCount++
		}
		p.Options = options
		p.VotesCount += len(choices)
		if p.VotersCount != nil {
			n := *p.VotersCount + 1
			p.VotersCount = &n
		}
		p.Voted = true
		p.OwnVotes = append([]int(nil), choices...)
		p.PendingVote = true
		tx.PutPoll(p)
		return nil
	})
}

// UpdatePoll replaces the poll carried by a status with a refreshed server copy.
func (e *Engine) UpdatePoll(ctx context.Context, statusID string, poll entity.Poll) error {
	if err := poll.Validate(); err != nil {
		return err
	}
	return e.store.Update(ctx, func(tx *store.Tx) error {
		s, ok := tx.Status(statusID)
		if !ok {
			return fmt.Errorf("status %q: %w", statusID, errs.ErrNotFound)
		}
		if s.PollID != poll.ID {
			s.PollID = poll.ID
			tx.PutStatus(s)
		}
		return stage(tx, Batch{Polls: []entity.Poll{poll}})
	})
}

// DeleteStatus removes a status deleted on the server together with the reblogs of
// it and the notifications about either, and drops them from every collection.
func (e *Engine) DeleteStatus(ctx context.Context, statusID string) error {
	var removed int
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if _, ok := tx.Status(statusID); !ok {
			return fmt.Errorf("status %q: %w", statusID, errs.ErrNotFound)
		}
		removed = DeleteStatusCascade(tx, statusID)
		return nil
	})
	if err == nil {
		e.log.Debug("status deleted", zap.String("status", statusID), zap.Int("rows", removed))
	}
	return err
}

// DeleteStatusCascade stages the deletion of statusID inside tx and returns the number of rows removed.
func DeleteStatusCascade(tx *store.Tx, statusID string) int {
	statuses := map[string]struct{}{statusID: {}}
	tx.EachStatus(func(s model.Status) bool {
		if s.ReblogID == statusID {
			statuses[s.ID] = struct{}{}
		}
		return true
	})
	notifications := map[string]struct{}{}
	tx.EachNotification(func(n model.Notification) bool {
		if _, ok := statuses[n.StatusID]; ok && n.StatusID != "" {
			notifications[n.ID] = struct{}{}
		}
		return true
	})

	removed := 0
	for id := range statuses {
		if tx.DeleteStatus(id) {
			removed++
		}
	}
	for id := range notifications {
		if tx.DeleteNotification(id) {
			removed++
		}
	}

	var changed []model.Collection
	tx.EachCollection(func(c model.Collection) bool {
		var drop map[string]struct{}
		switch c.Element {
		case model.KindStatus:
			drop = statuses
		case model.KindNotification:
			drop = notifications
		default:
			return true
		}
		if next, ok := c.Without(func(id string) bool { _, hit := drop[id]; return hit }); ok {
			changed = append(changed, next)
		}
		return true
	})
	for _, c := range changed {
		tx.PutCollection(c)
	}
	return removed
}
