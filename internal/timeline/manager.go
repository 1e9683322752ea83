// Package timeline maintains ordered, paginated collection membership:
// timelines, account lists, notification feeds and search results.
//
// Membership is stored in the order pages arrive and never re-sorted. Each page
// operation writes the page's entities and the membership change as one batch.
package timeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
	"github.com/and161185/fedicache/internal/upsert"
)

// Page is one fetched page of a collection: member ids in server order, the cursor
// the page was requested with and the entities it carried.
type Page struct {
	IDs      []string
	Cursor   model.Cursor
	Entities upsert.Batch
}

// Manager applies page operations to the collections of one store.
type Manager struct {
	engine *upsert.Engine
	store  *store.Store
	limit  int
	log    *zap.Logger
}

// New constructs a manager. limit bounds collections kept by Prune; zero disables pruning.
func New(engine *upsert.Engine, limit int, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{engine: engine, store: engine.Store(), limit: limit, log: log}
}

func validKey(key model.CollectionKey) error {
	if strings.TrimSpace(key.Name) == "" {
		return fmt.Errorf("%w: empty collection name", errs.ErrInvalidArgument)
	}
	switch key.Element {
	case model.KindStatus, model.KindAccount, model.KindNotification:
		return nil
	default:
		return fmt.Errorf("%w: collection %q holds unsupported kind %q", errs.ErrInvalidArgument, key.Name, key.Element)
	}
}

func validPage(p Page) error {
	for i, id := range p.IDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: ids[%d] is empty", errs.ErrInvalidArgument, i)
		}
	}
	return nil
}

// write stages the page entities and the membership change computed by fn in one batch.
func (m *Manager) write(ctx context.Context, key model.CollectionKey, p Page,
	fn func(c model.Collection, exists bool) (model.Collection, error),
) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := validPage(p); err != nil {
		return err
	}
	return m.store.Update(ctx, func(tx *store.Tx) error {
		if err := m.engine.Stage(tx, p.Entities); err != nil {
			return err
		}
		c, ok := tx.Collection(key.Name)
		if ok && c.Element != key.Element {
			return fmt.Errorf("%w: collection %q holds %q", errs.ErrInvalidArgument, key.Name, c.Element)
		}
		next, err := fn(c, ok)
		if err != nil {
			return err
		}
		tx.PutCollection(next)
		return nil
	})
}

// ReplacePage makes p the whole membership of key, as on a first fetch or a hard refresh.
func (m *Manager) ReplacePage(ctx context.Context, key model.CollectionKey, p Page) error {
	return m.write(ctx, key, p, func(c model.Collection, _ bool) (model.Collection, error) {
		return replaced(c, key, p.IDs), nil
	})
}

// AppendOlderPage adds p below the current tail. Ids already present keep their position.
// A page that does not abut the tail is preceded by a gap.
func (m *Manager) AppendOlderPage(ctx context.Context, key model.CollectionKey, p Page) error {
	return m.write(ctx, key, p, func(c model.Collection, ok bool) (model.Collection, error) {
		if !ok {
			return replaced(c, key, p.IDs), nil
		}
		return appendedOlder(c, p.IDs, p.Cursor), nil
	})
}

// PrependNewerPage adds p above the current head. Ids already present keep their position.
// A page that does not abut the head leaves a gap above the old head.
func (m *Manager) PrependNewerPage(ctx context.Context, key model.CollectionKey, p Page) error {
	return m.write(ctx, key, p, func(c model.Collection, ok bool) (model.Collection, error) {
		if !ok {
			return replaced(c, key, p.IDs), nil
		}
		return prependedNewer(c, p.IDs, p.Cursor), nil
	})
}

// FillGap inserts p, loaded downwards from the entry above the gap, into the gap
// before member gapID.
func (m *Manager) FillGap(ctx context.Context, key model.CollectionKey, gapID string, p Page) error {
	return m.write(ctx, key, p, func(c model.Collection, ok bool) (model.Collection, error) {
		if !ok {
			return c, fmt.Errorf("collection %q: %w", key.Name, errs.ErrNotFound)
		}
		at := c.Index(gapID)
		if at < 0 {
			return c, fmt.Errorf("collection %q member %q: %w", key.Name, gapID, errs.ErrNotFound)
		}
		if !c.Entries[at].GapBefore {
			return c, fmt.Errorf("%w: no gap before %q in %q", errs.ErrInvalidArgument, gapID, key.Name)
		}
		return filledGap(c, at, p.IDs), nil
	})
}

// Remove drops id from every collection holding the element kind of key, not only from key.
func (m *Manager) Remove(ctx context.Context, key model.CollectionKey, id string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return m.store.Update(ctx, func(tx *store.Tx) error {
		var changed []model.Collection
		tx.EachCollection(func(c model.Collection) bool {
			if c.Element != key.Element {
				return true
			}
			if next, ok := c.Without(func(member string) bool { return member == id }); ok {
				changed = append(changed, next)
			}
			return true
		})
		for _, c := range changed {
			tx.PutCollection(c)
		}
		return nil
	})
}

// Invalidate forgets the membership of key; the next page fetched replaces it.
func (m *Manager) Invalidate(ctx context.Context, key model.CollectionKey) error {
	if err := validKey(key); err != nil {
		return err
	}
	return m.store.Update(ctx, func(tx *store.Tx) error {
		tx.DeleteCollection(key.Name)
		return nil
	})
}

// SetReadMarker records the last read member of key.
func (m *Manager) SetReadMarker(ctx context.Context, key model.CollectionKey, id string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return m.store.Update(ctx, func(tx *store.Tx) error {
		c, ok := tx.Collection(key.Name)
		if !ok {
			return fmt.Errorf("collection %q: %w", key.Name, errs.ErrNotFound)
		}
		c.ReadMarker = id
		tx.PutCollection(c)
		return nil
	})
}

// Prune trims every collection to the manager's limit and returns the number of entries dropped.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.limit <= 0 {
		return 0, nil
	}
	var dropped int
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		var changed []model.Collection
		tx.EachCollection(func(c model.Collection) bool {
			if next, n := pruned(c, m.limit); n > 0 {
				changed = append(changed, next)
				dropped += n
			}
			return true
		})
		for _, c := range changed {
			tx.PutCollection(c)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if dropped > 0 {
		m.log.Debug("collections pruned", zap.Int("entries", dropped), zap.Int("limit", m.limit))
	}
	return dropped, nil
}
