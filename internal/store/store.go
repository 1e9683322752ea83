// Package store is the per-identity entity store: flat keyed tables per entity type,
// a single-writer batch path and snapshot reads.
//
// Writes are staged in a Tx, persisted through the optional repository in one
// transaction, applied to the in-memory tables under an exclusive lock and only
// then published to observers. Readers hold a shared lock for the whole read and
// therefore see either the state before a batch or after it, never in between.
package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/repository"
)

const tracerName = "github.com/and161185/fedicache/internal/store"

// Observer receives the keys changed by each committed batch, in commit order.
// Committed runs on the writer path; it may read the store but must not write to it.
type Observer interface {
	Committed(keys []model.Key)
	// StoreClosed is called once when the store closes.
	StoreClosed()
}

// Store holds one identity's tables.
type Store struct {
	label string
	log   *zap.Logger
	repo  repository.ContentRepository

	writeMu sync.Mutex
	stateMu sync.RWMutex
	state   *tables

	observers []Observer
	closed    atomic.Bool
	corrupted atomic.Bool
	applying  atomic.Bool
}

// New returns an empty store. repo may be nil for a memory-only store.
// label identifies the store in logs and must not be a raw identity id.
func New(label string, repo repository.ContentRepository, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		label: label,
		log:   log.With(zap.String("store", label)),
		repo:  repo,
		state: newTables(),
	}
}

// Open returns a store filled with the rows repo already holds.
func Open(ctx context.Context, label string, repo repository.ContentRepository, log *zap.Logger) (*Store, error) {
	s := New(label, repo, log)
	if repo == nil {
		return s, nil
	}
	_, span := otel.Tracer(tracerName).Start(ctx, "store.Open")
	defer span.End()

	cs, err := repo.Load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load store: %w", err)
	}
	s.state.load(cs)
	span.SetAttributes(attribute.Int("fedicache.rows", cs.Len()))
	s.log.Debug("store loaded", zap.Int("rows", cs.Len()))
	return s, nil
}

// Label returns the log label of the store.
func (s *Store) Label() string { return s.label }

// AddObserver registers o for commit notifications. Call before the store is shared.
func (s *Store) AddObserver(o Observer) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Store) usable() error {
	if s.corrupted.Load() {
		return errs.ErrStoreCorrupted
	}
	if s.closed.Load() {
		return errs.ErrStoreClosed
	}
	return nil
}

// Update runs fn as one atomic batch. If fn or persistence fails, nothing is applied.
// Batches are serialized; observers are notified once per batch after the state changed.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "store.Update")
	defer span.End()

	tx := newTx(s)
	defer tx.done.Store(true)

	if err := fn(tx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	cs, keys := tx.changes()
	span.SetAttributes(attribute.Int("fedicache.changes", len(keys)))
	if len(keys) == 0 {
		return nil
	}
	if s.repo != nil {
		if err := s.repo.Apply(ctx, cs); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("persist batch: %w", err)
		}
	}

	if !s.applying.CompareAndSwap(false, true) {
		s.violation("apply entered while another batch is applying")
	}
	s.stateMu.Lock()
	tx.apply()
	s.stateMu.Unlock()
	s.applying.Store(false)

	s.log.Debug("batch committed", zap.Int("changes", len(keys)))
	for _, o := range s.observers {
		o.Committed(keys)
	}
	return nil
}

// View runs fn against a consistent snapshot of the committed state.
// fn must not retain r.
func (s *Store) View(fn func(r Reader) error) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if err := s.usable(); err != nil {
		return err
	}
	return fn(s.state)
}

// Quiesce runs fn while no batch is in flight. Observers use it to register
// interest and read an initial value without missing a concurrent commit.
func (s *Store) Quiesce(fn func(r Reader) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.usable(); err != nil {
		return err
	}
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return fn(s.state)
}

// Stats counts committed rows per table.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.View(func(Reader) error {
		st = s.state.stats()
		return nil
	})
	return st, err
}

// Close stops observers and releases the repository. Further calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, o := range s.observers {
		o.StoreClosed()
	}
	s.log.Debug("store closed")
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// violation poisons the store and panics.
func (s *Store) violation(reason string) {
	s.corrupted.Store(true)
	s.log.Error("store invariant violated", zap.String("reason", reason))
	panic(fmt.Errorf("%w: %s", errs.ErrConcurrentMutation, reason))
}
