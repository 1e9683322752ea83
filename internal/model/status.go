package model

import "time"

// Visibility of a status.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
	VisibilityUnknown  Visibility = "unknown"
)

// ParseVisibility maps unrecognised values to VisibilityUnknown.
func ParseVisibility(s string) Visibility {
	switch v := Visibility(s); v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate, VisibilityDirect:
		return v
	default:
		return VisibilityUnknown
	}
}

// Attachment is a media attachment.
type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Description string `json:"description,omitempty"`
	Blurhash    string `json:"blurhash,omitempty"`
}

// Mention of an account inside a status.
type Mention struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// Tag is a hashtag used in a status.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// StatusSource is the raw text of a status, fetched for editing.
type StatusSource struct {
	Text        string `json:"text"`
	SpoilerText string `json:"spoiler_text"`
}

// Overrides are local-only fields layered over a server-truth Status.
// They are never present in server payloads and survive refetches.
type Overrides struct {
	ContentHidden     bool
	AttachmentsHidden bool
	Source            *StatusSource
}

// Status is a cached post. Reblog and poll are referenced by id.
type Status struct {
	ID                 string       `json:"id"`
	URI                string       `json:"uri"`
	URL                string       `json:"url,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	EditedAt           *time.Time   `json:"edited_at,omitempty"`
	AccountID          string       `json:"account_id"`
	Content            string       `json:"content"`
	Visibility         Visibility   `json:"visibility"`
	Sensitive          bool         `json:"sensitive"`
	SpoilerText        string       `json:"spoiler_text"`
	MediaAttachments   []Attachment `json:"media_attachments,omitempty"`
	Mentions           []Mention    `json:"mentions,omitempty"`
	Tags               []Tag        `json:"tags,omitempty"`
	Emojis             []Emoji      `json:"emojis,omitempty"`
	ReblogsCount       int          `json:"reblogs_count"`
	FavouritesCount    int          `json:"favourites_count"`
	RepliesCount       int          `json:"replies_count"`
	InReplyToID        string       `json:"in_reply_to_id,omitempty"`
	InReplyToAccountID string       `json:"in_reply_to_account_id,omitempty"`
	ReblogID           string       `json:"reblog_id,omitempty"`
	PollID             string       `json:"poll_id,omitempty"`
	Language           string       `json:"language,omitempty"`
	Favourited         bool         `json:"favourited"`
	Reblogged          bool         `json:"reblogged"`
	Muted              bool         `json:"muted"`
	Bookmarked         bool         `json:"bookmarked"`
	Pinned             *bool        `json:"pinned,omitempty"`

	// Local is persisted in its own column-set, not in the payload.
	Local Overrides `json:"-"`
}

func (s Status) RecordKey() Key { return StatusKey(s.ID) }

// PollOption is one choice with its tally.
type PollOption struct {
	Title      string `json:"title"`
	VotesCount int    `json:"votes_count"`
}

// Poll is shared by reference between the statuses that carry it.
type Poll struct {
	ID          string       `json:"id"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Expired     bool         `json:"expired"`
	Multiple    bool         `json:"multiple"`
	VotesCount  int          `json:"votes_count"`
	VotersCount *int         `json:"voters_count,omitempty"`
	Voted       bool         `json:"voted"`
	OwnVotes    []int        `json:"own_votes,omitempty"`
	Options     []PollOption `json:"options"`
	Emojis      []Emoji      `json:"emojis,omitempty"`

	// PendingVote marks a vote recorded locally and not yet confirmed by the server.
	PendingVote bool `json:"pending_vote,omitempty"`
}

func (p Poll) RecordKey() Key { return PollKey(p.ID) }
