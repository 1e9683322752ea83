package upsert

import (
	"fmt"
	"strings"

	"github.com/and161185/fedicache/internal/entity"
	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
)

// Batch is one set of fetched entities applied atomically.
// Full records are written before patches.
type Batch struct {
	Accounts            []entity.Account
	Statuses            []entity.Status
	Polls               []entity.Poll
	Relationships       []entity.Relationship
	Notifications       []entity.Notification
	FamiliarFollowers   []entity.FamiliarFollowers
	PollPatches         []PollPatch
	RelationshipPatches []RelationshipPatch
}

// Empty reports whether b carries nothing.
func (b Batch) Empty() bool {
	return len(b.Accounts) == 0 && len(b.Statuses) == 0 && len(b.Polls) == 0 &&
		len(b.Relationships) == 0 && len(b.Notifications) == 0 && len(b.FamiliarFollowers) == 0 &&
		len(b.PollPatches) == 0 && len(b.RelationshipPatches) == 0
}

// Validate checks every entity of the batch and returns the first failure.
func (b Batch) Validate() error {
	for i := range b.Accounts {
		if err := b.Accounts[i].Validate(); err != nil {
			return fmt.Errorf("accounts[%d]: %w", i, err)
		}
	}
	for i := range b.Statuses {
		if err := b.Statuses[i].Validate(); err != nil {
			return fmt.Errorf("statuses[%d]: %w", i, err)
		}
	}
	for i := range b.Polls {
		if err := b.Polls[i].Validate(); err != nil {
			return fmt.Errorf("polls[%d]: %w", i, err)
		}
	}
	for i := range b.Relationships {
		if err := entity.ValidateRelationship(&b.Relationships[i]); err != nil {
			return fmt.Errorf("relationships[%d]: %w", i, err)
		}
	}
	for i := range b.Notifications {
		if err := b.Notifications[i].Validate(); err != nil {
			return fmt.Errorf("notifications[%d]: %w", i, err)
		}
	}
	for i := range b.FamiliarFollowers {
		if err := b.FamiliarFollowers[i].Validate(); err != nil {
			return fmt.Errorf("familiar_followers[%d]: %w", i, err)
		}
	}
	for i := range b.PollPatches {
		if err := b.PollPatches[i].validate(); err != nil {
			return fmt.Errorf("poll_patches[%d]: %w", i, err)
		}
	}
	for i := range b.RelationshipPatches {
		if strings.TrimSpace(b.RelationshipPatches[i].ID) == "" {
			return fmt.Errorf("relationship_patches[%d]: %w", i,
				&entity.ValidationError{Kind: model.KindRelationship, Field: "id", Reason: "is required"})
		}
	}
	return nil
}

// PollPatch updates the provided fields of a cached poll. Nil fields are left as they are.
type PollPatch struct {
	ID          string
	Expired     *bool
	VotesCount  *int
	VotersCount *int
	Voted       *bool
	OwnVotes    []int
	Options     []model.PollOption
}

func (p *PollPatch) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return &entity.ValidationError{Kind: model.KindPoll, Field: "id", Reason: "is required"}
	}
	if p.Options != nil && len(p.Options) == 0 {
		return &entity.ValidationError{Kind: model.KindPoll, ID: p.ID, Field: "options", Reason: "is empty"}
	}
	return nil
}

func (p PollPatch) apply(poll model.Poll) (model.Poll, error) {
	if p.Expired != nil {
		poll.Expired = *p.Expired
	}
	if p.VotesCount != nil {
		poll.VotesCount = *p.VotesCount
	}
	if p.VotersCount != nil {
		n := *p.VotersCount
		poll.VotersCount = &n
	}
	if p.Voted != nil {
		poll.Voted = *p.Voted
		poll.PendingVote = false
	}
	if p.Options != nil {
		poll.Options = append([]model.PollOption(nil), p.Options...)
	}
	if p.OwnVotes != nil {
		poll.OwnVotes = append([]int(nil), p.OwnVotes...)
		poll.PendingVote = false
	}
	for _, v := range poll.OwnVotes {
		if v < 0 || v >= len(poll.Options) {
			return poll, fmt.Errorf("%w: poll %q own vote %d out of range", errs.ErrMalformed, poll.ID, v)
		}
	}
	return poll, nil
}

// RelationshipPatch updates the provided flags of a cached relationship.
type RelationshipPatch struct {
	ID                  string
	Following           *bool
	ShowingReblogs      *bool
	Notifying           *bool
	FollowedBy          *bool
	Blocking            *bool
	BlockedBy           *bool
	Muting              *bool
	MutingNotifications *bool
	Requested           *bool
	DomainBlocking      *bool
	Endorsed            *bool
	Note                *string
}

func (p RelationshipPatch) apply(r model.Relationship) model.Relationship {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.Following, p.Following)
	set(&r.ShowingReblogs, p.ShowingReblogs)
	set(&r.Notifying, p.Notifying)
	set(&r.FollowedBy, p.FollowedBy)
	set(&r.Blocking, p.Blocking)
	set(&r.BlockedBy, p.BlockedBy)
	set(&r.Muting, p.Muting)
	set(&r.MutingNotifications, p.MutingNotifications)
	set(&r.Requested, p.Requested)
	set(&r.DomainBlocking, p.DomainBlocking)
	set(&r.Endorsed, p.Endorsed)
	if p.Note != nil {
		r.Note = *p.Note
	}
	return r
}
