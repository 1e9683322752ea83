// Package entity defines the fetched entities the network client hands to the cache.
//
// Entities are nested the way the remote API returns them: a Status embeds its
// author, its reblogged Status and its Poll. The upsert engine flattens them into
// model records. Local override fields on Status are pointers: nil means the
// payload did not set them.
package entity

import (
	"time"

	"github.com/and161185/fedicache/internal/model"
)

// Account as fetched. Moved may itself be a fetched account.
type Account struct {
	ID             string
	Username       string
	Acct           string
	DisplayName    string
	Locked         bool
	CreatedAt      time.Time
	FollowersCount int
	FollowingCount int
	StatusesCount  int
	Note           string
	URL            string
	Avatar         string
	AvatarStatic   string
	Header         string
	HeaderStatic   string
	Fields         []model.Field
	Emojis         []model.Emoji
	Bot            bool
	Group          bool
	Discoverable   bool
	Moved          *Account
	Source         *model.AccountSource
}

// Poll as fetched.
type Poll struct {
	ID          string
	ExpiresAt   *time.Time
	Expired     bool
	Multiple    bool
	VotesCount  int
	VotersCount *int
	Voted       bool
	OwnVotes    []int
	Options     []model.PollOption
	Emojis      []model.Emoji
}

// Status as fetched, with optional local override fields.
type Status struct {
	ID                 string
	URI                string
	URL                string
	CreatedAt          time.Time
	EditedAt           *time.Time
	Account            Account
	Content            string
	Visibility         string
	Sensitive          bool
	SpoilerText        string
	MediaAttachments   []model.Attachment
	Mentions           []model.Mention
	Tags               []model.Tag
	Emojis             []model.Emoji
	ReblogsCount       int
	FavouritesCount    int
	RepliesCount       int
	InReplyToID        string
	InReplyToAccountID string
	Reblog             *Status
	Poll               *Poll
	Language           string
	Favourited         bool
	Reblogged          bool
	Muted              bool
	Bookmarked         bool
	Pinned             *bool

	ContentHidden     *bool
	AttachmentsHidden *bool
	Source            *model.StatusSource
}

// Relationship as fetched; the record shape is identical.
type Relationship = model.Relationship

// Notification as fetched.
type Notification struct {
	ID        string
	Type      string
	Account   Account
	Status    *Status
	CreatedAt time.Time
}

// FamiliarFollowers as fetched for one account.
type FamiliarFollowers struct {
	ID       string
	Accounts []Account
}
