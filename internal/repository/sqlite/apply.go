package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/repository"
)

const (
	tableAccounts      = "accounts"
	tablePolls         = "polls"
	tableStatuses      = "statuses"
	tableStatusSource  = "statuses.source"
	tableRelationships = "relationships"
	tableNotifications = "notifications"
	tableCollections   = "collections"
)

// collectionMeta is the sealed part of a collection row; members live in collection_items.
type collectionMeta struct {
	ReachedEnd bool   `json:"reached_end,omitempty"`
	ReadMarker string `json:"read_marker,omitempty"`
}

// Apply writes one committed batch in a single transaction.
func (r *Repo) Apply(ctx context.Context, cs repository.ChangeSet) (err error) {
	if cs.Empty() {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = e
		}
	}()

	if err = r.deleteRows(ctx, tx, cs); err != nil {
		return err
	}
	for i, a := range cs.Accounts {
		if err = r.putAccount(ctx, tx, a); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
	}
	for i, p := range cs.Polls {
		if err = r.putPoll(ctx, tx, p); err != nil {
			return fmt.Errorf("polls[%d]: %w", i, err)
		}
	}
	for i, s := range cs.Statuses {
		if err = r.putStatus(ctx, tx, s); err != nil {
			return fmt.Errorf("statuses[%d]: %w", i, err)
		}
	}
	for i, rel := range cs.Relationships {
		if err = r.putRelationship(ctx, tx, rel); err != nil {
			return fmt.Errorf("relationships[%d]: %w", i, err)
		}
	}
	for i, n := range cs.Notifications {
		if err = r.putNotification(ctx, tx, n); err != nil {
			return fmt.Errorf("notifications[%d]: %w", i, err)
		}
	}
	for i, f := range cs.Familiar {
		if err = putFamiliar(ctx, tx, f); err != nil {
			return fmt.Errorf("familiar_followers[%d]: %w", i, err)
		}
	}
	for i, c := range cs.Collections {
		if err = r.putCollection(ctx, tx, c); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
	}
	return nil
}

func (r *Repo) deleteRows(ctx context.Context, tx *sql.Tx, cs repository.ChangeSet) error {
	groups := []struct {
		query string
		ids   []string
	}{
		{`DELETE FROM accounts WHERE id = ?`, cs.DeletedAccounts},
		{`DELETE FROM statuses WHERE id = ?`, cs.DeletedStatuses},
		{`DELETE FROM polls WHERE id = ?`, cs.DeletedPolls},
		{`DELETE FROM relationships WHERE account_id = ?`, cs.DeletedRelationships},
		{`DELETE FROM notifications WHERE id = ?`, cs.DeletedNotifications},
		{`DELETE FROM familiar_followers WHERE account_id = ?`, cs.DeletedFamiliar},
		{`DELETE FROM collections WHERE name = ?`, cs.DeletedCollections},
	}
	for _, g := range groups {
		for _, id := range g.ids {
			if _, err := tx.ExecContext(ctx, g.query, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repo) seal(table, id string, v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return r.sealer.Seal(table, id, plain)
}

func (r *Repo) putAccount(ctx context.Context, tx *sql.Tx, a model.Account) error {
	blob, err := r.seal(tableAccounts, a.ID, a)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO accounts (id, moved_id, blob_enc) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET moved_id = excluded.moved_id, blob_enc = excluded.blob_enc`
	_, err = tx.ExecContext(ctx, q, a.ID, nullString(a.MovedID), blob)
	return err
}

func (r *Repo) putPoll(ctx context.Context, tx *sql.Tx, p model.Poll) error {
	blob, err := r.seal(tablePolls, p.ID, p)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO polls (id, blob_enc) VALUES (?, ?)
ON CONFLICT (id) DO UPDATE SET blob_enc = excluded.blob_enc`
	_, err = tx.ExecContext(ctx, q, p.ID, blob)
	return err
}

func (r *Repo) putStatus(ctx context.Context, tx *sql.Tx, s model.Status) error {
	blob, err := r.seal(tableStatuses, s.ID, s)
	if err != nil {
		return err
	}
	var source []byte
	if s.Local.Source != nil {
		if source, err = r.seal(tableStatusSource, s.ID, s.Local.Source); err != nil {
			return err
		}
	}
	const q = `
INSERT INTO statuses (id, account_id, reblog_id, poll_id, content_hidden, attachments_hidden, source_enc, blob_enc)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    account_id         = excluded.account_id,
    reblog_id          = excluded.reblog_id,
    poll_id            = excluded.poll_id,
    content_hidden     = excluded.content_hidden,
    attachments_hidden = excluded.attachments_hidden,
    source_enc         = excluded.source_enc,
    blob_enc           = excluded.blob_enc`
	_, err = tx.ExecContext(ctx, q,
		s.ID, s.AccountID, nullString(s.ReblogID), nullString(s.PollID),
		boolInt(s.Local.ContentHidden), boolInt(s.Local.AttachmentsHidden), source, blob)
	return err
}

func (r *Repo) putRelationship(ctx context.Context, tx *sql.Tx, rel model.Relationship) error {
	blob, err := r.seal(tableRelationships, rel.ID, rel)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO relationships (account_id, blob_enc) VALUES (?, ?)
ON CONFLICT (account_id) DO UPDATE SET blob_enc = excluded.blob_enc`
	_, err = tx.ExecContext(ctx, q, rel.ID, blob)
	return err
}

func (r *Repo) putNotification(ctx context.Context, tx *sql.Tx, n model.Notification) error {
	blob, err := r.seal(tableNotifications, n.ID, n)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO notifications (id, account_id, status_id, created_at, blob_enc) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    account_id = excluded.account_id,
    status_id  = excluded.status_id,
    created_at = excluded.created_at,
    blob_enc   = excluded.blob_enc`
	_, err = tx.ExecContext(ctx, q, n.ID, n.AccountID, nullString(n.StatusID), n.CreatedAt.UnixMilli(), blob)
	return err
}

func putFamiliar(ctx context.Context, tx *sql.Tx, f model.FamiliarFollowers) error {
	const ins = `INSERT INTO familiar_followers (account_id) VALUES (?) ON CONFLICT (account_id) DO NOTHING`
	const clr = `DELETE FROM familiar_follower_items WHERE account_id = ?`
	const item = `INSERT INTO familiar_follower_items (account_id, position, follower_id) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, f.AccountID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, clr, f.AccountID); err != nil {
		return err
	}
	for pos, id := range f.FollowerIDs {
		if _, err := tx.ExecContext(ctx, item, f.AccountID, pos, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) putCollection(ctx context.Context, tx *sql.Tx, c model.Collection) error {
	blob, err := r.seal(tableCollections, c.Name, collectionMeta{ReachedEnd: c.ReachedEnd, ReadMarker: c.ReadMarker})
	if err != nil {
		return err
	}
	const ins = `
INSERT INTO collections (name, element, blob_enc) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET element = excluded.element, blob_enc = excluded.blob_enc`
	const clr = `DELETE FROM collection_items WHERE name = ?`
	const item = `INSERT INTO collection_items (name, position, entity_id, gap_before) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, c.Name, string(c.Element), blob); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, clr, c.Name); err != nil {
		return err
	}
	for pos, e := range c.Entries {
		if _, err := tx.ExecContext(ctx, item, c.Name, pos, e.ID, boolInt(e.GapBefore)); err != nil {
			return err
		}
	}
	return nil
}
