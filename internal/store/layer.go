package store

import (
	"reflect"

	"github.com/and161185/fedicache/internal/model"
)

// layer stages writes to one table over its committed base map.
// Values cross the layer boundary only as clones.
type layer[T any] struct {
	kind    model.Kind
	clone   func(T) T
	base    map[string]T
	puts    map[string]T
	dels    map[string]struct{}
	touched []string
	seen    map[string]struct{}
}

func newLayer[T any](kind model.Kind, base map[string]T, clone func(T) T) layer[T] {
	return layer[T]{
		kind:  kind,
		clone: clone,
		base:  base,
		puts:  map[string]T{},
		dels:  map[string]struct{}{},
		seen:  map[string]struct{}{},
	}
}

func (l *layer[T]) touch(id string) {
	if _, ok := l.seen[id]; ok {
		return
	}
	l.seen[id] = struct{}{}
	l.touched = append(l.touched, id)
}

func (l *layer[T]) get(id string) (T, bool) {
	if _, ok := l.dels[id]; ok {
		var zero T
		return zero, false
	}
	if v, ok := l.puts[id]; ok {
		return l.clone(v), true
	}
	v, ok := l.base[id]
	if !ok {
		return v, false
	}
	return l.clone(v), true
}

func (l *layer[T]) put(id string, v T) {
	delete(l.dels, id)
	l.puts[id] = l.clone(v)
	l.touch(id)
}

func (l *layer[T]) del(id string) bool {
	if _, ok := l.get(id); !ok {
		return false
	}
	delete(l.puts, id)
	if _, ok := l.base[id]; ok {
		l.dels[id] = struct{}{}
	}
	l.touch(id)
	return true
}

// each visits the staged view of the table. Returning false stops the walk.
func (l *layer[T]) each(fn func(id string, v T) bool) {
	for id, v := range l.base {
		if _, ok := l.dels[id]; ok {
			continue
		}
		if p, ok := l.puts[id]; ok {
			v = p
		}
		if !fn(id, l.clone(v)) {
			return
		}
	}
	for id, v := range l.puts {
		if _, ok := l.base[id]; ok {
			continue
		}
		if !fn(id, l.clone(v)) {
			return
		}
	}
}

// flush returns the net writes of the layer. Puts equal to the committed row are dropped.
func (l *layer[T]) flush() (puts []T, dels []string, keys []model.Key) {
	for _, id := range l.touched {
		if _, ok := l.dels[id]; ok {
			dels = append(dels, id)
			keys = append(keys, model.Key{Kind: l.kind, ID: id})
			continue
		}
		v, ok := l.puts[id]
		if !ok {
			continue
		}
		if old, exists := l.base[id]; exists && reflect.DeepEqual(old, v) {
			delete(l.puts, id)
			continue
		}
		puts = append(puts, v)
		keys = append(keys, model.Key{Kind: l.kind, ID: id})
	}
	return puts, dels, keys
}

// apply writes flushed changes into the base map.
func (l *layer[T]) apply() {
	for id := range l.dels {
		delete(l.base, id)
	}
	for id, v := range l.puts {
		l.base[id] = v
	}
}
