package timeline

import "github.com/and161185/fedicache/internal/model"

// Every function here returns a new Collection with freshly allocated entries;
// the input may be shared with readers and is never modified.

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func members(c model.Collection) map[string]int {
	m := make(map[string]int, len(c.Entries))
	for i, e := range c.Entries {
		m[e.ID] = i
	}
	return m
}

func entries(ids []string) []model.Entry {
	out := make([]model.Entry, len(ids))
	for i, id := range ids {
		out[i] = model.Entry{ID: id}
	}
	return out
}

// replaced returns the collection holding exactly ids. The read marker survives.
func replaced(old model.Collection, key model.CollectionKey, ids []string) model.Collection {
	ids = dedupe(ids)
	return model.Collection{
		Name:       key.Name,
		Element:    key.Element,
		Entries:    entries(ids),
		ReachedEnd: len(ids) == 0,
		ReadMarker: old.ReadMarker,
	}
}

// appendedOlder extends c at its tail. The page abuts when it overlaps the
// current members or was requested from the current tail; otherwise the first
// new entry carries a gap. An empty older page means the end was reached.
func appendedOlder(c model.Collection, ids []string, cur model.Cursor) model.Collection {
	ids = dedupe(ids)
	out := c
	if len(ids) == 0 {
		out.Entries = append([]model.Entry(nil), c.Entries...)
		out.ReachedEnd = true
		return out
	}

	have := members(c)
	overlap := false
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := have[id]; ok {
			overlap = true
			continue
		}
		fresh = append(fresh, id)
	}
	abut := len(c.Entries) == 0 || overlap || (cur.MaxID != "" && cur.MaxID == c.Tail())

	out.Entries = make([]model.Entry, 0, len(c.Entries)+len(fresh))
	out.Entries = append(out.Entries, c.Entries...)
	for i, id := range fresh {
		out.Entries = append(out.Entries, model.Entry{ID: id, GapBefore: i == 0 && !abut})
	}
	return out
}

// prependedNewer extends c at its head. When the page does not abut the current
// head, the old head is marked with a gap.
func prependedNewer(c model.Collection, ids []string, cur model.Cursor) model.Collection {
	ids = dedupe(ids)
	out := c
	have := members(c)
	overlap := false
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := have[id]; ok {
			overlap = true
			continue
		}
		fresh = append(fresh, id)
	}
	abut := len(c.Entries) == 0 || overlap || (cur.MinID != "" && cur.MinID == c.Head())

	out.Entries = make([]model.Entry, 0, len(c.Entries)+len(fresh))
	out.Entries = append(out.Entries, entries(fresh)...)
	for i, e := range c.Entries {
		if i == 0 && len(fresh) > 0 && !abut {
			e.GapBefore = true
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// filledGap inserts an older page loaded from just above the gap before gapAt.
// The gap closes when the page reaches the entry below it or comes back empty;
// otherwise it stays above that entry.
func filledGap(c model.Collection, gapAt int, ids []string) model.Collection {
	ids = dedupe(ids)
	have := members(c)
	closed := len(ids) == 0
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if pos, ok := have[id]; ok {
			if pos >= gapAt {
				closed = true
				break
			}
			continue
		}
		fresh = append(fresh, id)
	}

	out := c
	out.Entries = make([]model.Entry, 0, len(c.Entries)+len(fresh))
	out.Entries = append(out.Entries, c.Entries[:gapAt]...)
	out.Entries = append(out.Entries, entries(fresh)...)
	for i, e := range c.Entries[gapAt:] {
		if i == 0 {
			e.GapBefore = !closed
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// pruned keeps the newest limit entries.
func pruned(c model.Collection, limit int) (model.Collection, int) {
	if limit <= 0 || len(c.Entries) <= limit {
		return c, 0
	}
	out := c
	out.Entries = append([]model.Entry(nil), c.Entries[:limit]...)
	out.ReachedEnd = false
	return out, len(c.Entries) - limit
}
