package model

// CollectionKey names an ordered membership list and the kind of entity it holds.
type CollectionKey struct {
	Name    string
	Element Kind
}

func (k CollectionKey) String() string { return k.Name }

// ProfileCollection selects one of an account's status lists.
type ProfileCollection string

const (
	ProfileStatuses           ProfileCollection = "statuses"
	ProfileStatusesAndReplies ProfileCollection = "statuses_and_replies"
	ProfileMedia              ProfileCollection = "media"
)

var (
	HomeTimeline         = CollectionKey{Name: "timeline:home", Element: KindStatus}
	LocalTimeline        = CollectionKey{Name: "timeline:local", Element: KindStatus}
	FederatedTimeline    = CollectionKey{Name: "timeline:federated", Element: KindStatus}
	FavouritesTimeline   = CollectionKey{Name: "timeline:favourites", Element: KindStatus}
	BookmarksTimeline    = CollectionKey{Name: "timeline:bookmarks", Element: KindStatus}
	AllNotifications     = CollectionKey{Name: "notifications:all", Element: KindNotification}
	MentionNotifications = CollectionKey{Name: "notifications:mentions", Element: KindNotification}
)

func ListTimeline(listID string) CollectionKey {
	return CollectionKey{Name: "timeline:list:" + listID, Element: KindStatus}
}

func TagTimeline(tag string) CollectionKey {
	return CollectionKey{Name: "timeline:tag:" + tag, Element: KindStatus}
}

func ProfileTimeline(accountID string, c ProfileCollection) CollectionKey {
	return CollectionKey{Name: "profile:" + accountID + ":" + string(c), Element: KindStatus}
}

func PinnedStatuses(accountID string) CollectionKey {
	return CollectionKey{Name: "profile:" + accountID + ":pinned", Element: KindStatus}
}

func Followers(accountID string) CollectionKey {
	return CollectionKey{Name: "accounts:followers:" + accountID, Element: KindAccount}
}

func Following(accountID string) CollectionKey {
	return CollectionKey{Name: "accounts:following:" + accountID, Element: KindAccount}
}

func FavouritedBy(statusID string) CollectionKey {
	return CollectionKey{Name: "accounts:favourited_by:" + statusID, Element: KindAccount}
}

func RebloggedBy(statusID string) CollectionKey {
	return CollectionKey{Name: "accounts:reblogged_by:" + statusID, Element: KindAccount}
}

func SearchStatuses(query string) CollectionKey {
	return CollectionKey{Name: "search:statuses:" + query, Element: KindStatus}
}

func SearchAccounts(query string) CollectionKey {
	return CollectionKey{Name: "search:accounts:" + query, Element: KindAccount}
}

// Cursor records the bounds a page was requested with.
// MaxID is the exclusive upper bound of an older page, MinID the exclusive lower bound of a newer one.
type Cursor struct {
	MaxID string `json:"max_id,omitempty"`
	MinID string `json:"min_id,omitempty"`
}

// Entry is one member of a collection. GapBefore marks a discontinuity between
// this entry and the one above it.
type Entry struct {
	ID        string `json:"id"`
	GapBefore bool   `json:"gap_before,omitempty"`
}

// Collection is server-ordered membership of a CollectionKey.
// The order is stored as given and never re-derived.
type Collection struct {
	Name       string  `json:"name"`
	Element    Kind    `json:"element"`
	Entries    []Entry `json:"entries"`
	ReachedEnd bool    `json:"reached_end,omitempty"`
	// ReadMarker is a local-only last-read position, kept across full replacements.
	ReadMarker string `json:"read_marker,omitempty"`
}

func (c Collection) RecordKey() Key { return CollectionRowKey(c.Name) }

// Key returns the collection's key.
func (c Collection) Key() CollectionKey { return CollectionKey{Name: c.Name, Element: c.Element} }

// IDs returns member ids in order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Index returns the position of id or -1.
func (c Collection) Index(id string) int {
	for i, e := range c.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Head returns the newest member id, "" when empty.
func (c Collection) Head() string {
	if len(c.Entries) == 0 {
		return ""
	}
	return c.Entries[0].ID
}

// Tail returns the oldest member id, "" when empty.
func (c Collection) Tail() string {
	if len(c.Entries) == 0 {
		return ""
	}
	return c.Entries[len(c.Entries)-1].ID
}

// Gaps returns the ids of entries preceded by a gap.
func (c Collection) Gaps() []string {
	var out []string
	for _, e := range c.Entries {
		if e.GapBefore {
			out = append(out, e.ID)
		}
	}
	return out
}

// Without returns a copy of c lacking every entry drop reports true for, and whether
// anything was removed. A removed entry's gap carries over to the entry after it.
func (c Collection) Without(drop func(id string) bool) (Collection, bool) {
	out := c
	out.Entries = make([]Entry, 0, len(c.Entries))
	carry := false
	for _, e := range c.Entries {
		if drop(e.ID) {
			carry = carry || e.GapBefore
			continue
		}
		if carry {
			e.GapBefore = true
			carry = false
		}
		out.Entries = append(out.Entries, e)
	}
	if len(out.Entries) == len(c.Entries) {
		return c, false
	}
	return out, true
}
