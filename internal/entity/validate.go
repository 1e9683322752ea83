package entity

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
)

// maxNesting bounds moved/reblog chains in a single payload.
const maxNesting = 8

// ValidationError reports the first required field a fetched entity lacks.
type ValidationError struct {
	Kind   model.Kind
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s %s", e.Kind, e.ID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return errs.ErrMalformed }

func missing(kind model.Kind, id, field string) error {
	return &ValidationError{Kind: kind, ID: id, Field: field, Reason: "is required"}
}

// Validate checks required account fields, following Moved.
func (a *Account) Validate() error { return a.validate(0) }

func (a *Account) validate(depth int) error {
	if depth > maxNesting {
		return &ValidationError{Kind: model.KindAccount, ID: a.ID, Field: "moved", Reason: "nests too deep"}
	}
	if strings.TrimSpace(a.ID) == "" {
		return missing(model.KindAccount, "", "id")
	}
	if a.Username == "" {
		return missing(model.KindAccount, a.ID, "username")
	}
	if a.Acct == "" {
		return missing(model.KindAccount, a.ID, "acct")
	}
	for field, raw := range map[string]string{
		"url":           a.URL,
		"avatar":        a.Avatar,
		"avatar_static": a.AvatarStatic,
		"header":        a.Header,
		"header_static": a.HeaderStatic,
	} {
		if err := checkURL(model.KindAccount, a.ID, field, raw); err != nil {
			return err
		}
	}
	if a.Moved != nil {
		if err := a.Moved.validate(depth + 1); err != nil {
			return fmt.Errorf("moved: %w", err)
		}
	}
	return nil
}

// Validate checks required poll fields.
func (p *Poll) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return missing(model.KindPoll, "", "id")
	}
	if len(p.Options) == 0 {
		return missing(model.KindPoll, p.ID, "options")
	}
	for _, v := range p.OwnVotes {
		if v < 0 || v >= len(p.Options) {
			return &ValidationError{Kind: model.KindPoll, ID: p.ID, Field: "own_votes", Reason: "out of range"}
		}
	}
	return nil
}

// Validate checks required status fields, including author, reblog and poll.
func (s *Status) Validate() error { return s.validate(0) }

func (s *Status) validate(depth int) error {
	if depth > maxNesting {
		return &ValidationError{Kind: model.KindStatus, ID: s.ID, Field: "reblog", Reason: "nests too deep"}
	}
	if strings.TrimSpace(s.ID) == "" {
		return missing(model.KindStatus, "", "id")
	}
	if s.CreatedAt.IsZero() {
		return missing(model.KindStatus, s.ID, "created_at")
	}
	if err := s.Account.Validate(); err != nil {
		return fmt.Errorf("status %q account: %w", s.ID, err)
	}
	if err := checkURL(model.KindStatus, s.ID, "url", s.URL); err != nil {
		return err
	}
	if s.Reblog != nil {
		if s.Reblog.ID == s.ID {
			return &ValidationError{Kind: model.KindStatus, ID: s.ID, Field: "reblog", Reason: "references itself"}
		}
		if err := s.Reblog.validate(depth + 1); err != nil {
			return fmt.Errorf("status %q reblog: %w", s.ID, err)
		}
	}
	if s.Poll != nil {
		if err := s.Poll.Validate(); err != nil {
			return fmt.Errorf("status %q poll: %w", s.ID, err)
		}
	}
	return nil
}

// Validate checks required notification fields.
func (n *Notification) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return missing(model.KindNotification, "", "id")
	}
	if n.Type == "" {
		return missing(model.KindNotification, n.ID, "type")
	}
	if n.CreatedAt.IsZero() {
		return missing(model.KindNotification, n.ID, "created_at")
	}
	if err := n.Account.Validate(); err != nil {
		return fmt.Errorf("notification %q account: %w", n.ID, err)
	}
	if n.Status != nil {
		if err := n.Status.Validate(); err != nil {
			return fmt.Errorf("notification %q status: %w", n.ID, err)
		}
	}
	return nil
}

// ValidateRelationship checks the relationship target id.
func ValidateRelationship(r *Relationship) error {
	if strings.TrimSpace(r.ID) == "" {
		return missing(model.KindRelationship, "", "id")
	}
	return nil
}

// Validate checks the owning account id and every follower.
func (f *FamiliarFollowers) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return missing(model.KindFamiliarFollowers, "", "id")
	}
	for i := range f.Accounts {
		if err := f.Accounts[i].Validate(); err != nil {
			return fmt.Errorf("familiar followers %q account[%d]: %w", f.ID, i, err)
		}
	}
	return nil
}

// checkURL rejects values that do not parse as absolute URLs; empty is allowed.
func checkURL(kind model.Kind, id, field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{Kind: kind, ID: id, Field: field, Reason: "is not an absolute url"}
	}
	return nil
}
