package upsert

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// CompactResult counts rows dropped by Compact.
type CompactResult struct {
	Accounts int
	Statuses int
	Polls    int
}

// Compact drops statuses, polls and accounts no longer reachable from any collection,
// notification, relationship or familiar followers list. Records watched reports true
// for are roots as well, as are accounts carrying a private source (the viewer), statuses
// with local state beyond the first-sighting defaults and polls with a pending vote.
// watched runs inside the batch and may be nil.
func (e *Engine) Compact(ctx context.Context, watched func(model.Key) bool) (CompactResult, error) {
	if watched == nil {
		watched = func(model.Key) bool { return false }
	}
	var res CompactResult
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		res = compact(tx, watched)
		return nil
	})
	if err == nil {
		e.log.Info("store compacted",
			zap.Int("accounts", res.Accounts),
			zap.Int("statuses", res.Statuses),
			zap.Int("polls", res.Polls))
	}
	return res, err
}

// hasLocalState reports whether s carries overrides a refetch could not restore.
func hasLocalState(s model.Status) bool {
	return s.Local.Source != nil ||
		s.Local.ContentHidden != (s.SpoilerText != "") ||
		s.Local.AttachmentsHidden != s.Sensitive
}

func compact(tx *store.Tx, watched func(model.Key) bool) CompactResult {
	accounts := map[string]struct{}{}
	statuses := map[string]struct{}{}
	polls := map[string]struct{}{}

	var statusQueue []string
	markStatus := func(id string) {
		if id == "" {
			return
		}
		if _, ok := statuses[id]; ok {
			return
		}
		statuses[id] = struct{}{}
		statusQueue = append(statusQueue, id)
	}

	tx.EachCollection(func(c model.Collection) bool {
		for _, e := range c.Entries {
			switch c.Element {
			case model.KindStatus:
				markStatus(e.ID)
			case model.KindAccount:
				accounts[e.ID] = struct{}{}
			}
		}
		return true
	})
	tx.EachNotification(func(n model.Notification) bool {
		accounts[n.AccountID] = struct{}{}
		markStatus(n.StatusID)
		return true
	})
	tx.EachRelationship(func(r model.Relationship) bool {
		accounts[r.ID] = struct{}{}
		return true
	})
	tx.EachFamiliarFollowers(func(f model.FamiliarFollowers) bool {
		accounts[f.AccountID] = struct{}{}
		for _, id := range f.FollowerIDs {
			accounts[id] = struct{}{}
		}
		return true
	})
	tx.EachAccount(func(a model.Account) bool {
		if a.Source != nil || watched(a.RecordKey()) {
			accounts[a.ID] = struct{}{}
		}
		return true
	})
	tx.EachStatus(func(s model.Status) bool {
		if hasLocalState(s) || watched(s.RecordKey()) {
			markStatus(s.ID)
		}
		return true
	})
	tx.EachPoll(func(p model.Poll) bool {
		if p.PendingVote || watched(p.RecordKey()) {
			polls[p.ID] = struct{}{}
		}
		return true
	})

	for len(statusQueue) > 0 {
		id := statusQueue[0]
		statusQueue = statusQueue[1:]
		s, ok := tx.Status(id)
		if !ok {
			continue
		}
		accounts[s.AccountID] = struct{}{}
		if s.PollID != "" {
			polls[s.PollID] = struct{}{}
		}
		markStatus(s.ReblogID)
	}

	// moved chains of reachable accounts
	var queue []string
	for id := range accounts {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		a, ok := tx.Account(id)
		if !ok || a.MovedID == "" {
			continue
		}
		if _, seen := accounts[a.MovedID]; !seen {
			accounts[a.MovedID] = struct{}{}
			queue = append(queue, a.MovedID)
		}
	}

	var res CompactResult
	var drop []string
	tx.EachStatus(func(s model.Status) bool {
		if _, ok := statuses[s.ID]; !ok {
			drop = append(drop, s.ID)
		}
		return true
	})
	for _, id := range drop {
		tx.DeleteStatus(id)
		res.Statuses++
	}
	drop = drop[:0]
	tx.EachPoll(func(p model.Poll) bool {
		if _, ok := polls[p.ID]; !ok {
			drop = append(drop, p.ID)
		}
		return true
	})
	for _, id := range drop {
		tx.DeletePoll(id)
		res.Polls++
	}
	drop = drop[:0]
	tx.EachAccount(func(a model.Account) bool {
		if _, ok := accounts[a.ID]; !ok {
			drop = append(drop, a.ID)
		}
		return true
	})
	for _, id := range drop {
		tx.DeleteAccount(id)
		res.Accounts++
	}
	return res
}
