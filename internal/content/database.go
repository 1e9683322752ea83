// Package content is the per-identity content database: one entity store with
// its upsert engine, collection manager and subscription registry.
package content

import (
	"context"

	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/live"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/resolve"
	"github.com/and161185/fedicache/internal/store"
	"github.com/and161185/fedicache/internal/timeline"
	"github.com/and161185/fedicache/internal/upsert"
)

// Options tunes a Database.
type Options struct {
	// TimelineLimit bounds every collection during Maintain; zero keeps everything.
	TimelineLimit int
}

// Database serves one identity.
type Database struct {
	store     *store.Store
	engine    *upsert.Engine
	timelines *timeline.Manager
	registry  *live.Registry
	log       *zap.Logger
}

// New wires a database over s. The database owns s from now on.
func New(s *store.Store, opts Options, log *zap.Logger) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	engine := upsert.New(s, log)
	return &Database{
		store:     s,
		engine:    engine,
		timelines: timeline.New(engine, opts.TimelineLimit, log),
		registry:  live.NewRegistry(s, log),
		log:       log,
	}
}

// Store returns the entity store.
func (d *Database) Store() *store.Store { return d.store }

// Engine returns the upsert engine used for batches and local mutations.
func (d *Database) Engine() *upsert.Engine { return d.engine }

// Timelines returns the collection manager.
func (d *Database) Timelines() *timeline.Manager { return d.timelines }

// Registry returns the subscription table, for custom Subscribe queries.
func (d *Database) Registry() *live.Registry { return d.registry }

// Apply writes a fetched batch.
func (d *Database) Apply(ctx context.Context, b upsert.Batch) error {
	return d.engine.Apply(ctx, b)
}

// Stats counts rows per table.
func (d *Database) Stats() (store.Stats, error) { return d.store.Stats() }

// MaintenanceResult reports the work done by Maintain.
type MaintenanceResult struct {
	Pruned    int
	Compacted upsert.CompactResult
}

// Maintain trims collections to the configured limit and then drops unreachable entities.
// Entities read by a live subscription are kept.
func (d *Database) Maintain(ctx context.Context) (MaintenanceResult, error) {
	var res MaintenanceResult
	var err error
	if res.Pruned, err = d.timelines.Prune(ctx); err != nil {
		return res, err
	}
	if res.Compacted, err = d.engine.Compact(ctx, d.registry.Watched); err != nil {
		return res, err
	}
	return res, nil
}

// Close ends every subscription and closes the store.
func (d *Database) Close() error { return d.store.Close() }

// Result is a query result that may be absent because it was never fetched.
type Result[T any] struct {
	Value   T
	Present bool
}

// AccountResult is an account watch result. Placeholder is set while the value is
// the caller's synthesized account because the store does not hold the id yet.
type AccountResult struct {
	Value       resolve.AccountInfo
	Present     bool
	Placeholder bool
}

// WatchAccount follows one account. placeholder, when not nil, is emitted until
// the store holds the id; from then on the stored account always wins.
func (d *Database) WatchAccount(id string, placeholder *model.Account) (*live.Subscription[AccountResult], error) {
	return live.Subscribe(d.registry, func(r store.Reader) AccountResult {
		if info, ok := resolve.Account(r, id); ok {
			return AccountResult{Value: info, Present: true}
		}
		if placeholder != nil {
			return AccountResult{Value: resolve.AccountInfo{Account: *placeholder}, Present: true, Placeholder: true}
		}
		return AccountResult{}
	})
}

// WatchAccountAndRelationship follows an account with the viewer's relationship and familiar followers.
func (d *Database) WatchAccountAndRelationship(id string) (*live.Subscription[Result[resolve.AccountAndRelationshipInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) Result[resolve.AccountAndRelationshipInfo] {
		v, ok := resolve.AccountAndRelationship(r, id)
		return Result[resolve.AccountAndRelationshipInfo]{Value: v, Present: ok}
	})
}

// WatchProfile follows an account page header.
func (d *Database) WatchProfile(id string) (*live.Subscription[Result[resolve.ProfileInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) Result[resolve.ProfileInfo] {
		v, ok := resolve.Profile(r, id)
		return Result[resolve.ProfileInfo]{Value: v, Present: ok}
	})
}

// WatchStatus follows one status with its author, reblog and poll.
func (d *Database) WatchStatus(id string) (*live.Subscription[Result[resolve.StatusInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) Result[resolve.StatusInfo] {
		v, ok := resolve.Status(r, id)
		return Result[resolve.StatusInfo]{Value: v, Present: ok}
	})
}

// WatchNotification follows one notification.
func (d *Database) WatchNotification(id string) (*live.Subscription[Result[resolve.NotificationInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) Result[resolve.NotificationInfo] {
		v, ok := resolve.Notification(r, id)
		return Result[resolve.NotificationInfo]{Value: v, Present: ok}
	})
}

// WatchStatuses follows a status collection.
func (d *Database) WatchStatuses(key model.CollectionKey) (*live.Subscription[resolve.Page[resolve.StatusInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) resolve.Page[resolve.StatusInfo] {
		return resolve.StatusPage(r, key)
	})
}

// WatchAccounts follows an account collection.
func (d *Database) WatchAccounts(key model.CollectionKey) (*live.Subscription[resolve.Page[resolve.AccountAndRelationshipInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) resolve.Page[resolve.AccountAndRelationshipInfo] {
		return resolve.AccountPage(r, key)
	})
}

// WatchNotifications follows a notification collection.
func (d *Database) WatchNotifications(key model.CollectionKey) (*live.Subscription[resolve.Page[resolve.NotificationInfo]], error) {
	return live.Subscribe(d.registry, func(r store.Reader) resolve.Page[resolve.NotificationInfo] {
		return resolve.NotificationPage(r, key)
	})
}
