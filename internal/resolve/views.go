package resolve

import (
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

// AccountInfo is an account with the account it moved to. Moved is resolved one level deep.
type AccountInfo struct {
	Account model.Account
	Moved   *model.Account
}

// AccountAndRelationshipInfo adds the viewer's satellites to an account.
// A nil Relationship means it was never fetched. FamiliarFollowersFetched
// tells an unfetched list apart from a fetched empty one.
type AccountAndRelationshipInfo struct {
	AccountInfo
	Relationship             *model.Relationship
	FamiliarFollowers        []AccountInfo
	FamiliarFollowersFetched bool
}

// ProfileInfo is an account page header with its pinned statuses.
type ProfileInfo struct {
	AccountAndRelationshipInfo
	Pinned []StatusInfo
}

// StatusInfo is a status with its author, poll and reblogged status.
// The reblogged status is resolved one level deep and shares nothing with the outer one.
type StatusInfo struct {
	Status  model.Status
	Account AccountInfo
	Reblog  *StatusInfo
	Poll    *model.Poll
}

// Display returns the status to render: the reblogged one for a reblog.
func (s StatusInfo) Display() StatusInfo {
	if s.Reblog != nil {
		return *s.Reblog
	}
	return s
}

// NotificationInfo is a notification with its account and optional status.
type NotificationInfo struct {
	Notification model.Notification
	Account      AccountInfo
	Status       *StatusInfo
}

var accountRelations = []Relation[model.Account]{
	{
		Name:   "moved",
		Card:   Optional,
		Target: model.KindAccount,
		Join:   func(a model.Account, _ store.Reader) []string { return key(a.MovedID) },
	},
}

var viewerRelations = []Relation[model.Account]{
	{
		Name:   "relationship",
		Card:   Optional,
		Target: model.KindRelationship,
		Join:   func(a model.Account, _ store.Reader) []string { return key(a.ID) },
	},
	{
		Name:   "familiar_followers",
		Card:   Many,
		Target: model.KindAccount,
		Join: func(a model.Account, r store.Reader) []string {
			f, ok := r.FamiliarFollowers(a.ID)
			if !ok {
				return nil
			}
			return f.FollowerIDs
		},
		Order: InsertionOrder,
	},
}

var pinnedRelations = []Relation[model.Account]{
	{
		Name:   "pinned",
		Card:   Many,
		Target: model.KindStatus,
		Join: func(a model.Account, r store.Reader) []string {
			c, ok := r.Collection(model.PinnedStatuses(a.ID).Name)
			if !ok {
				return nil
			}
			return c.IDs()
		},
		Order: InsertionOrder,
	},
}

var (
	statusAuthor = Relation[model.Status]{
		Name:   "account",
		Card:   One,
		Target: model.KindAccount,
		Join:   func(s model.Status, _ store.Reader) []string { return key(s.AccountID) },
	}
	statusReblog = Relation[model.Status]{
		Name:   "reblog",
		Card:   One,
		Target: model.KindStatus,
		Join:   func(s model.Status, _ store.Reader) []string { return key(s.ReblogID) },
	}
	statusPoll = Relation[model.Status]{
		Name:   "poll",
		Card:   Optional,
		Target: model.KindPoll,
		Join:   func(s model.Status, _ store.Reader) []string { return key(s.PollID) },
	}

	statusRelations = []Relation[model.Status]{statusAuthor, statusReblog, statusPoll}
	// a reblogged status is not followed into its own reblog
	reblogRelations = []Relation[model.Status]{statusAuthor, statusPoll}
)

var notificationRelations = []Relation[model.Notification]{
	{
		Name:   "account",
		Card:   One,
		Target: model.KindAccount,
		Join:   func(n model.Notification, _ store.Reader) []string { return key(n.AccountID) },
	},
	{
		Name:   "status",
		Card:   One,
		Target: model.KindStatus,
		Join:   func(n model.Notification, _ store.Reader) []string { return key(n.StatusID) },
	},
}

// Account resolves an account. ok is false when it is not cached.
func Account(r store.Reader, id string) (AccountInfo, bool) {
	a, ok := r.Account(id)
	if !ok {
		return AccountInfo{}, false
	}
	return accountInfo(r, a), true
}

func accountInfo(r store.Reader, a model.Account) AccountInfo {
	info := AccountInfo{Account: a}
	res, _ := interpret(r, a, accountRelations)
	if id, ok := res.first("moved"); ok {
		moved, _ := r.Account(id)
		info.Moved = &moved
	}
	return info
}

// AccountAndRelationship resolves an account with the viewer's relationship and familiar followers.
func AccountAndRelationship(r store.Reader, id string) (AccountAndRelationshipInfo, bool) {
	a, ok := r.Account(id)
	if !ok {
		return AccountAndRelationshipInfo{}, false
	}
	return accountAndRelationship(r, a), true
}

func accountAndRelationship(r store.Reader, a model.Account) AccountAndRelationshipInfo {
	info := AccountAndRelationshipInfo{AccountInfo: accountInfo(r, a)}
	res, _ := interpret(r, a, viewerRelations)
	if id, ok := res.first("relationship"); ok {
		rel, _ := r.Relationship(id)
		info.Relationship = &rel
	}
	if _, ok := r.FamiliarFollowers(a.ID); ok {
		info.FamiliarFollowersFetched = true
		info.FamiliarFollowers = make([]AccountInfo, 0, len(res["familiar_followers"]))
		for _, fid := range res["familiar_followers"] {
			f, _ := r.Account(fid)
			info.FamiliarFollowers = append(info.FamiliarFollowers, accountInfo(r, f))
		}
	}
	return info
}

// Profile resolves an account page: account, viewer satellites and pinned statuses.
func Profile(r store.Reader, id string) (ProfileInfo, bool) {
	a, ok := r.Account(id)
	if !ok {
		return ProfileInfo{}, false
	}
	p := ProfileInfo{AccountAndRelationshipInfo: accountAndRelationship(r, a)}
	res, _ := interpret(r, a, pinnedRelations)
	for _, sid := range res["pinned"] {
		if s, ok := Status(r, sid); ok {
			p.Pinned = append(p.Pinned, s)
		}
	}
	return p, true
}

// Status resolves a status. ok is false when the status, its author or its
// reblogged status is not cached.
func Status(r store.Reader, id string) (StatusInfo, bool) {
	return status(r, id, true)
}

func status(r store.Reader, id string, followReblog bool) (StatusInfo, bool) {
	s, ok := r.Status(id)
	if !ok {
		return StatusInfo{}, false
	}
	rels := statusRelations
	if !followReblog {
		rels = reblogRelations
	}
	res, ok := interpret(r, s, rels)
	if !ok {
		return StatusInfo{}, false
	}

	info := StatusInfo{Status: s}
	aid, _ := res.first("account")
	author, _ := r.Account(aid)
	info.Account = accountInfo(r, author)
	if pid, ok := res.first("poll"); ok {
		p, _ := r.Poll(pid)
		info.Poll = &p
	}
	if rid, ok := res.first("reblog"); ok {
		inner, ok := status(r, rid, false)
		if !ok {
			return StatusInfo{}, false
		}
		info.Reblog = &inner
	}
	return info, true
}

// Notification resolves a notification. ok is false when its account or referenced status is not cached.
func Notification(r store.Reader, id string) (NotificationInfo, bool) {
	n, ok := r.Notification(id)
	if !ok {
		return NotificationInfo{}, false
	}
	res, ok := interpret(r, n, notificationRelations)
	if !ok {
		return NotificationInfo{}, false
	}
	aid, _ := res.first("account")
	a, _ := r.Account(aid)
	info := NotificationInfo{Notification: n, Account: accountInfo(r, a)}
	if sid, ok := res.first("status"); ok {
		s, ok := Status(r, sid)
		if !ok {
			return NotificationInfo{}, false
		}
		info.Status = &s
	}
	return info, true
}
