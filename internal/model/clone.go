package model

import "slices"

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFields(fs []Field) []Field {
	out := slices.Clone(fs)
	for i := range out {
		out[i].VerifiedAt = clonePtr(out[i].VerifiedAt)
	}
	return out
}

// Clone returns a copy of a that shares no memory with it.
func (a Account) Clone() Account {
	a.Fields = cloneFields(a.Fields)
	a.Emojis = slices.Clone(a.Emojis)
	if a.Source != nil {
		src := *a.Source
		src.Fields = cloneFields(src.Fields)
		a.Source = &src
	}
	return a
}

// Clone returns a copy of s that shares no memory with it.
func (s Status) Clone() Status {
	s.EditedAt = clonePtr(s.EditedAt)
	s.MediaAttachments = slices.Clone(s.MediaAttachments)
	s.Mentions = slices.Clone(s.Mentions)
	s.Tags = slices.Clone(s.Tags)
	s.Emojis = slices.Clone(s.Emojis)
	s.Pinned = clonePtr(s.Pinned)
	s.Local.Source = clonePtr(s.Local.Source)
	return s
}

// Clone returns a copy of p that shares no memory with it.
func (p Poll) Clone() Poll {
	p.ExpiresAt = clonePtr(p.ExpiresAt)
	p.VotersCount = clonePtr(p.VotersCount)
	p.OwnVotes = slices.Clone(p.OwnVotes)
	p.Options = slices.Clone(p.Options)
	p.Emojis = slices.Clone(p.Emojis)
	return p
}

func (r Relationship) Clone() Relationship { return r }

func (n Notification) Clone() Notification { return n }

func (f FamiliarFollowers) Clone() FamiliarFollowers {
	f.FollowerIDs = slices.Clone(f.FollowerIDs)
	return f
}

func (c Collection) Clone() Collection {
	c.Entries = slices.Clone(c.Entries)
	return c
}
