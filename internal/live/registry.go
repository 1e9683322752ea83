// Package live implements reactive query subscriptions over one entity store.
//
// A Registry is the store's subscription table: a map from record key to the
// subscriptions whose last evaluation read that key. After each committed batch
// every affected subscription is re-evaluated once against the post-batch state
// and emits only when its result changed.
package live

import (
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// Registry holds the subscriptions of one store.
type Registry struct {
	store *store.Store
	log   *zap.Logger

	mu        sync.Mutex
	interests map[model.Key]map[*entry]struct{}
	entries   map[*entry]struct{}
	closed    bool
}

var _ store.Observer = (*Registry)(nil)

// NewRegistry creates the registry of s and registers it as an observer.
func NewRegistry(s *store.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		store:     s,
		log:       log,
		interests: map[model.Key]map[*entry]struct{}{},
		entries:   map[*entry]struct{}{},
	}
	s.AddObserver(r)
	return r
}

// entry is the type-erased side of a Subscription.
type entry struct {
	// eval recomputes the query and delivers the result when it changed.
	eval  func(r store.Reader)
	stop  func()
	keys  []model.Key
	ended bool
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Watched reports whether the last evaluation of any active subscription read k.
func (r *Registry) Watched(k model.Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.interests[k]) > 0
}

func (r *Registry) run(e *entry, rd store.Reader) {
	t := newTracker(rd)
	e.eval(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ended {
		return
	}
	r.unindex(e)
	e.keys = t.list()
	for _, k := range e.keys {
		set, ok := r.interests[k]
		if !ok {
			set = map[*entry]struct{}{}
			r.interests[k] = set
		}
		set[e] = struct{}{}
	}
}

func (r *Registry) unindex(e *entry) {
	for _, k := range e.keys {
		set := r.interests[k]
		delete(set, e)
		if len(set) == 0 {
			delete(r.interests, k)
		}
	}
	e.keys = nil
}

// Committed re-evaluates, once each, the subscriptions that read any of keys.
func (r *Registry) Committed(keys []model.Key) {
	r.mu.Lock()
	affected := map[*entry]struct{}{}
	for _, k := range keys {
		for e := range r.interests[k] {
			affected[e] = struct{}{}
		}
	}
	r.mu.Unlock()
	if len(affected) == 0 {
		return
	}

	err := r.store.View(func(rd store.Reader) error {
		for e := range affected {
			r.run(e, rd)
		}
		return nil
	})
	if err != nil {
		r.log.Warn("subscription refresh skipped", zap.Error(err))
	}
}

// StoreClosed ends every subscription.
func (r *Registry) StoreClosed() {
	r.mu.Lock()
	r.closed = true
	ended := make([]*entry, 0, len(r.entries))
	for e := range r.entries {
		e.ended = true
		ended = append(ended, e)
	}
	r.entries = map[*entry]struct{}{}
	r.interests = map[model.Key]map[*entry]struct{}{}
	r.mu.Unlock()

	for _, e := range ended {
		e.stop()
	}
	if len(ended) > 0 {
		r.log.Debug("subscriptions ended by store close", zap.Int("count", len(ended)))
	}
}

func (r *Registry) cancel(e *entry) {
	r.mu.Lock()
	if e.ended {
		r.mu.Unlock()
		return
	}
	e.ended = true
	r.unindex(e)
	delete(r.entries, e)
	r.mu.Unlock()
	e.stop()
}
