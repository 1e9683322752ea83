package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/repository"
)

// Load reads and decrypts every row.
func (r *Repo) Load(ctx context.Context) (repository.ChangeSet, error) {
	var cs repository.ChangeSet
	var err error

	if cs.Accounts, err = loadBlobs[model.Account](ctx, r, tableAccounts, `SELECT id, blob_enc FROM accounts ORDER BY id`); err != nil {
		return cs, err
	}
	if cs.Polls, err = loadBlobs[model.Poll](ctx, r, tablePolls, `SELECT id, blob_enc FROM polls ORDER BY id`); err != nil {
		return cs, err
	}
	if cs.Relationships, err = loadBlobs[model.Relationship](ctx, r, tableRelationships, `SELECT account_id, blob_enc FROM relationships ORDER BY account_id`); err != nil {
		return cs, err
	}
	if cs.Notifications, err = loadBlobs[model.Notification](ctx, r, tableNotifications, `SELECT id, blob_enc FROM notifications ORDER BY id`); err != nil {
		return cs, err
	}
	if cs.Statuses, err = r.loadStatuses(ctx); err != nil {
		return cs, err
	}
	if cs.Familiar, err = r.loadFamiliar(ctx); err != nil {
		return cs, err
	}
	if cs.Collections, err = r.loadCollections(ctx); err != nil {
		return cs, err
	}
	return cs, nil
}

func (r *Repo) open(table, id string, blob []byte, v any) error {
	plain, err := r.sealer.Open(table, id, blob)
	if err != nil {
		return fmt.Errorf("%s %q: %w", table, id, errs.ErrStoreCorrupted)
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%s %q: decode: %w", table, id, errs.ErrStoreCorrupted)
	}
	return nil
}

func loadBlobs[T any](ctx context.Context, r *Repo, table, query string) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var (
			id   string
			blob []byte
			v    T
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		if err := r.open(table, id, blob, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repo) loadStatuses(ctx context.Context) ([]model.Status, error) {
	const q = `
SELECT id, content_hidden, attachments_hidden, source_enc, blob_enc
FROM statuses
ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Status
	for rows.Next() {
		var (
			id                  string
			contentHidden, atts int
			source, blob        []byte
			s                   model.Status
		)
		if err := rows.Scan(&id, &contentHidden, &atts, &source, &blob); err != nil {
			return nil, err
		}
		if err := r.open(tableStatuses, id, blob, &s); err != nil {
			return nil, err
		}
		s.Local.ContentHidden = contentHidden != 0
		s.Local.AttachmentsHidden = atts != 0
		if source != nil {
			var src model.StatusSource
			if err := r.open(tableStatusSource, id, source, &src); err != nil {
				return nil, err
			}
			s.Local.Source = &src
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) loadFamiliar(ctx context.Context) ([]model.FamiliarFollowers, error) {
	const q = `
SELECT f.account_id, i.follower_id
FROM familiar_followers f
LEFT JOIN familiar_follower_items i ON i.account_id = f.account_id
ORDER BY f.account_id, i.position`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FamiliarFollowers
	for rows.Next() {
		var (
			accountID string
			follower  sql.NullString
		)
		if err := rows.Scan(&accountID, &follower); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].AccountID != accountID {
			out = append(out, model.FamiliarFollowers{AccountID: accountID, FollowerIDs: []string{}})
		}
		if follower.Valid {
			last := &out[len(out)-1]
			last.FollowerIDs = append(last.FollowerIDs, follower.String)
		}
	}
	return out, rows.Err()
}

func (r *Repo) loadCollections(ctx context.Context) ([]model.Collection, error) {
	const q = `
SELECT c.name, c.element, c.blob_enc, i.entity_id, i.gap_before
FROM collections c
LEFT JOIN collection_items i ON i.name = c.name
ORDER BY c.name, i.position`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		var (
			name, element string
			blob          []byte
			entityID      sql.NullString
			gap           sql.NullInt64
		)
		if err := rows.Scan(&name, &element, &blob, &entityID, &gap); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Name != name {
			var meta collectionMeta
			if err := r.open(tableCollections, name, blob, &meta); err != nil {
				return nil, err
			}
			out = append(out, model.Collection{
				Name:       name,
				Element:    model.Kind(element),
				Entries:    []model.Entry{},
				ReachedEnd: meta.ReachedEnd,
				ReadMarker: meta.ReadMarker,
			})
		}
		if entityID.Valid {
			last := &out[len(out)-1]
			last.Entries = append(last.Entries, model.Entry{ID: entityID.String, GapBefore: gap.Int64 != 0})
		}
	}
	return out, rows.Err()
}
