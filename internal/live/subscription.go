package live

import (
	"reflect"
	"sync"

	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/store"
)

// Subscription delivers the results of one query. The channel holds at most one
// pending value: a consumer that falls behind receives the latest result, never
// a stale one. The channel is closed on Cancel and when the store closes.
type Subscription[T any] struct {
	reg *Registry
	e   *entry

	mu   sync.Mutex
	ch   chan T
	last T
	has  bool
	done bool
}

// Subscribe registers query and delivers its current result before returning.
// query must read only through the Reader it is given.
func Subscribe[T any](reg *Registry, query func(r store.Reader) T) (*Subscription[T], error) {
	s := &Subscription[T]{reg: reg, ch: make(chan T, 1)}
	e := &entry{
		eval: func(r store.Reader) { s.deliver(query(r)) },
		stop: s.close,
	}
	s.e = e

	err := reg.store.Quiesce(func(r store.Reader) error {
		reg.mu.Lock()
		if reg.closed {
			reg.mu.Unlock()
			return errs.ErrStoreClosed
		}
		reg.entries[e] = struct{}{}
		reg.mu.Unlock()
		reg.run(e, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Updates returns the result channel.
func (s *Subscription[T]) Updates() <-chan T { return s.ch }

// Cancel stops the subscription. It has no effect on the store and is safe to call twice.
func (s *Subscription[T]) Cancel() { s.reg.cancel(s.e) }

func (s *Subscription[T]) deliver(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if s.has && reflect.DeepEqual(s.last, v) {
		return
	}
	s.last, s.has = v, true
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	select {
	case <-s.ch:
	default:
	}
	close(s.ch)
}
