package model

import "time"

// Field is a profile metadata row.
type Field struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// Emoji is a custom emoji referenced from text.
type Emoji struct {
	Shortcode       string `json:"shortcode"`
	URL             string `json:"url"`
	StaticURL       string `json:"static_url"`
	VisibleInPicker bool   `json:"visible_in_picker"`
}

// AccountSource holds private profile fields, only present for the authenticated account.
type AccountSource struct {
	Note                string     `json:"note,omitempty"`
	Fields              []Field    `json:"fields,omitempty"`
	Privacy             Visibility `json:"privacy,omitempty"`
	Sensitive           bool       `json:"sensitive"`
	Language            string     `json:"language,omitempty"`
	FollowRequestsCount int        `json:"follow_requests_count"`
}

// Account is a cached profile. MovedID references the account it migrated to.
type Account struct {
	ID             string         `json:"id"`
	Username       string         `json:"username"`
	Acct           string         `json:"acct"`
	DisplayName    string         `json:"display_name"`
	Locked         bool           `json:"locked"`
	CreatedAt      time.Time      `json:"created_at"`
	FollowersCount int            `json:"followers_count"`
	FollowingCount int            `json:"following_count"`
	StatusesCount  int            `json:"statuses_count"`
	Note           string         `json:"note"`
	URL            string         `json:"url"`
	Avatar         string         `json:"avatar"`
	AvatarStatic   string         `json:"avatar_static"`
	Header         string         `json:"header"`
	HeaderStatic   string         `json:"header_static"`
	Fields         []Field        `json:"fields,omitempty"`
	Emojis         []Emoji        `json:"emojis,omitempty"`
	Bot            bool           `json:"bot"`
	Group          bool           `json:"group"`
	Discoverable   bool           `json:"discoverable"`
	MovedID        string         `json:"moved_id,omitempty"`
	Source         *AccountSource `json:"source,omitempty"`
}

func (a Account) RecordKey() Key { return AccountKey(a.ID) }

// Relationship is the viewer's directional edge to an account, keyed by the account id.
// A missing relationship means "unknown", never "all false".
type Relationship struct {
	ID                  string `json:"id"`
	Following           bool   `json:"following"`
	ShowingReblogs      bool   `json:"showing_reblogs"`
	Notifying           bool   `json:"notifying"`
	FollowedBy          bool   `json:"followed_by"`
	Blocking            bool   `json:"blocking"`
	BlockedBy           bool   `json:"blocked_by"`
	Muting              bool   `json:"muting"`
	MutingNotifications bool   `json:"muting_notifications"`
	Requested           bool   `json:"requested"`
	DomainBlocking      bool   `json:"domain_blocking"`
	Endorsed            bool   `json:"endorsed"`
	Note                string `json:"note,omitempty"`
}

func (r Relationship) RecordKey() Key { return RelationshipKey(r.ID) }

// FamiliarFollowers lists, in server order, accounts the viewer follows that also follow AccountID.
type FamiliarFollowers struct {
	AccountID   string   `json:"account_id"`
	FollowerIDs []string `json:"follower_ids"`
}

func (f FamiliarFollowers) RecordKey() Key { return FamiliarFollowersKey(f.AccountID) }
