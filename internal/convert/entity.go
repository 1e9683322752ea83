// Package convert maps fetched entities onto flat store records.
package convert

import (
	"github.com/and161185/fedicache/internal/entity"
	"github.com/and161185/fedicache/internal/model"
)

// --- Account ---

// AccountRecord flattens a fetched account. The moved-to account is referenced by id.
func AccountRecord(a entity.Account) model.Account {
	rec := model.Account{
		ID:             a.ID,
		Username:       a.Username,
		Acct:           a.Acct,
		DisplayName:    a.DisplayName,
		Locked:         a.Locked,
		CreatedAt:      a.CreatedAt,
		FollowersCount: a.FollowersCount,
		FollowingCount: a.FollowingCount,
		StatusesCount:  a.StatusesCount,
		Note:           a.Note,
		URL:            a.URL,
		Avatar:         a.Avatar,
		AvatarStatic:   a.AvatarStatic,
		Header:         a.Header,
		HeaderStatic:   a.HeaderStatic,
		Fields:         a.Fields,
		Emojis:         a.Emojis,
		Bot:            a.Bot,
		Group:          a.Group,
		Discoverable:   a.Discoverable,
		Source:         a.Source,
	}
	if a.Moved != nil {
		rec.MovedID = a.Moved.ID
	}
	return rec
}

// --- Poll ---

// PollRecord copies a fetched poll. A server poll never carries a pending local vote.
func PollRecord(p entity.Poll) model.Poll {
	return model.Poll{
		ID:          p.ID,
		ExpiresAt:   p.ExpiresAt,
		Expired:     p.Expired,
		Multiple:    p.Multiple,
		VotesCount:  p.VotesCount,
		VotersCount: p.VotersCount,
		Voted:       p.Voted,
		OwnVotes:    p.OwnVotes,
		Options:     p.Options,
		Emojis:      p.Emojis,
	}
}

// --- Status ---

// StatusRecord flattens the server-truth part of a fetched status.
// Local overrides are left zero; the upsert engine merges them.
func StatusRecord(s entity.Status) model.Status {
	rec := model.Status{
		ID:                 s.ID,
		URI:                s.URI,
		URL:                s.URL,
		CreatedAt:          s.CreatedAt,
		EditedAt:           s.EditedAt,
		AccountID:          s.Account.ID,
		Content:            s.Content,
		Visibility:         model.ParseVisibility(s.Visibility),
		Sensitive:          s.Sensitive,
		SpoilerText:        s.SpoilerText,
		MediaAttachments:   s.MediaAttachments,
		Mentions:           s.Mentions,
		Tags:               s.Tags,
		Emojis:             s.Emojis,
		ReblogsCount:       s.ReblogsCount,
		FavouritesCount:    s.FavouritesCount,
		RepliesCount:       s.RepliesCount,
		InReplyToID:        s.InReplyToID,
		InReplyToAccountID: s.InReplyToAccountID,
		Language:           s.Language,
		Favourited:         s.Favourited,
		Reblogged:          s.Reblogged,
		Muted:              s.Muted,
		Bookmarked:         s.Bookmarked,
		Pinned:             s.Pinned,
	}
	if s.Reblog != nil {
		rec.ReblogID = s.Reblog.ID
	}
	if s.Poll != nil {
		rec.PollID = s.Poll.ID
	}
	return rec
}

// --- Notification ---

// NotificationRecord flattens a fetched notification. Unknown types map to model.NotificationUnknown.
func NotificationRecord(n entity.Notification) model.Notification {
	rec := model.Notification{
		ID:        n.ID,
		Type:      model.ParseNotificationType(n.Type),
		AccountID: n.Account.ID,
		CreatedAt: n.CreatedAt,
	}
	if n.Status != nil {
		rec.StatusID = n.Status.ID
	}
	return rec
}

// --- FamiliarFollowers ---

// FamiliarFollowersRecord keeps follower ids in server order, dropping repeats.
func FamiliarFollowersRecord(f entity.FamiliarFollowers) model.FamiliarFollowers {
	ids := make([]string, 0, len(f.Accounts))
	seen := make(map[string]struct{}, len(f.Accounts))
	for _, a := range f.Accounts {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		ids = append(ids, a.ID)
	}
	return model.FamiliarFollowers{AccountID: f.ID, FollowerIDs: ids}
}
