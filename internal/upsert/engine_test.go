package upsert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/fedicache/internal/entity"
	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
)

var created = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	log := zaptest.NewLogger(t)
	return New(store.New("test", nil, log), log)
}

func acct(id string) entity.Account {
	return entity.Account{ID: id, Username: "user" + id, Acct: "user" + id}
}

func status(id, author string) entity.Status {
	return entity.Status{ID: id, CreatedAt: created, Account: acct(author), Content: "post " + id}
}

func readStatus(t *testing.T, e *Engine, id string) (model.Status, bool) {
	t.Helper()
	var (
		s  model.Status
		ok bool
	)
	require.NoError(t, e.Store().View(func(r store.Reader) error {
		s, ok = r.Status(id)
		return nil
	}))
	return s, ok
}

func TestApply_DecomposesNestedEntities(t *testing.T) {
	e := newEngine(t)
	moved := acct("3")
	author := acct("2")
	author.Moved = &moved

	s := status("10", "1")
	reblogged := status("9", "2")
	reblogged.Account = author
	reblogged.Poll = &entity.Poll{ID: "p", Options: []model.PollOption{{Title: "a"}, {Title: "b"}}}
	s.Reblog = &reblogged

	require.NoError(t, e.Apply(context.Background(), Batch{Statuses: []entity.Status{s}}))

	require.NoError(t, e.Store().View(func(r store.Reader) error {
		top, ok := r.Status("10")
		require.True(t, ok)
		require.Equal(t, "9", top.ReblogID)
		inner, ok := r.Status("9")
		require.True(t, ok)
		require.Equal(t, "p", inner.PollID)
		require.Equal(t, "2", inner.AccountID)
		a, ok := r.Account("2")
		require.True(t, ok)
		require.Equal(t, "3", a.MovedID)
		_, ok = r.Account("3")
		require.True(t, ok)
		_, ok = r.Poll("p")
		require.True(t, ok)
		return nil
	}))
}

func TestApply_OverridePreservedAcrossRefresh(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	first := status("1", "1")
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{first}}))
	s, _ := readStatus(t, e, "1")
	require.False(t, s.Local.ContentHidden)

	hidden, err := e.ToggleContentHidden(ctx, "1")
	require.NoError(t, err)
	require.True(t, hidden)

	refresh := status("1", "1")
	refresh.FavouritesCount = 7
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{refresh}}))

	s, _ = readStatus(t, e, "1")
	require.True(t, s.Local.ContentHidden)
	require.Equal(t, 7, s.FavouritesCount)
}

func TestApply_ExplicitOverrideWins(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{status("1", "1")}}))
	_, err := e.ToggleAttachmentsHidden(ctx, "1")
	require.NoError(t, err)

	show := false
	refresh := status("1", "1")
	refresh.AttachmentsHidden = &show
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{refresh}}))

	s, _ := readStatus(t, e, "1")
	require.False(t, s.Local.AttachmentsHidden)
}

func TestApply_FreshInsertDefaults(t *testing.T) {
	e := newEngine(t)
	s := status("1", "1")
	s.SpoilerText = "spoilers"
	s.Sensitive = true
	require.NoError(t, e.Apply(context.Background(), Batch{Statuses: []entity.Status{s}}))

	got, _ := readStatus(t, e, "1")
	require.True(t, got.Local.ContentHidden)
	require.True(t, got.Local.AttachmentsHidden)
}

func TestApply_SourcePreserved(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{status("1", "1")}}))
	require.NoError(t, e.SetStatusSource(ctx, "1", model.StatusSource{Text: "raw"}))
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{status("1", "1")}}))

	s, _ := readStatus(t, e, "1")
	require.Equal(t, &model.StatusSource{Text: "raw"}, s.Local.Source)
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	var commits int
	e.Store().AddObserver(observerFunc(func([]model.Key) { commits++ }))

	b := Batch{
		Statuses:      []entity.Status{status("1", "1"), status("2", "2")},
		Relationships: []entity.Relationship{{ID: "2", Following: true}},
		Notifications: []entity.Notification{{ID: "n", Type: "favourite", Account: acct("3"), CreatedAt: created}},
	}
	require.NoError(t, e.Apply(ctx, b))
	before, err := e.Store().Stats()
	require.NoError(t, err)

	require.NoError(t, e.Apply(ctx, b))
	after, err := e.Store().Stats()
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 1, commits)
}

func TestApply_MalformedRejectsWholeBatch(t *testing.T) {
	e := newEngine(t)
	bad := status("2", "2")
	bad.Account.Username = ""

	err := e.Apply(context.Background(), Batch{
		Accounts: []entity.Account{acct("9")},
		Statuses: []entity.Status{status("1", "1"), bad},
	})
	require.ErrorIs(t, err, errs.ErrMalformed)
	require.ErrorContains(t, err, "statuses[1]")

	st, err := e.Store().Stats()
	require.NoError(t, err)
	require.Zero(t, st.Accounts)
	require.Zero(t, st.Statuses)
}

func TestApply_StaleEditIgnored(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	edited := created.Add(time.Hour)
	newer := status("1", "1")
	newer.EditedAt = &edited
	newer.Content = "edited"
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{newer}}))

	older := status("1", "1")
	older.Content = "original"
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{older}}))

	s, _ := readStatus(t, e, "1")
	require.Equal(t, "edited", s.Content)
}

func TestApply_Patches(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Apply(ctx, Batch{
		Polls:         []entity.Poll{{ID: "p", Options: []model.PollOption{{Title: "a"}, {Title: "b"}}}},
		Relationships: []entity.Relationship{{ID: "2", Following: true, Note: "friend"}},
	}))

	muting, votes := true, 5
	require.NoError(t, e.Apply(ctx, Batch{
		PollPatches:         []PollPatch{{ID: "p", VotesCount: &votes}},
		RelationshipPatches: []RelationshipPatch{{ID: "2", Muting: &muting}},
	}))

	require.NoError(t, e.Store().View(func(r store.Reader) error {
		p, _ := r.Poll("p")
		require.Equal(t, 5, p.VotesCount)
		require.Len(t, p.Options, 2)
		rel, _ := r.Relationship("2")
		require.True(t, rel.Following)
		require.True(t, rel.Muting)
		require.Equal(t, "friend", rel.Note)
		return nil
	}))

	err := e.Apply(ctx, Batch{RelationshipPatches: []RelationshipPatch{{ID: "missing", Muting: &muting}}})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRecordVote(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	voters := 1
	require.NoError(t, e.Apply(ctx, Batch{Polls: []entity.Poll{{
		ID:          "p",
		VotersCount: &voters,
		Options:     []model.PollOption{{Title: "a"}, {Title: "b", VotesCount: 1}},
	}}}))

	require.ErrorIs(t, e.RecordVote(ctx, "p", []int{0, 1}), errs.ErrInvalidArgument)
	require.ErrorIs(t, e.RecordVote(ctx, "p", []int{4}), errs.ErrInvalidArgument)
	require.ErrorIs(t, e.RecordVote(ctx, "missing", []int{0}), errs.ErrNotFound)
	require.NoError(t, e.RecordVote(ctx, "p", []int{1}))

	var p model.Poll
	require.NoError(t, e.Store().View(func(r store.Reader) error {
		p, _ = r.Poll("p")
		return nil
	}))
	require.True(t, p.Voted)
	require.True(t, p.PendingVote)
	require.Equal(t, []int{1}, p.OwnVotes)
	require.Equal(t, 2, p.Options[1].VotesCount)
	require.Equal(t, 2, *p.VotersCount)

	// the server copy clears the pending mark
	require.NoError(t, e.Apply(ctx, Batch{Polls: []entity.Poll{{
		ID: "p", Voted: true, OwnVotes: []int{1},
		Options: []model.PollOption{{Title: "a"}, {Title: "b", VotesCount: 2}},
	}}}))
	require.NoError(t, e.Store().View(func(r store.Reader) error {
		p, _ = r.Poll("p")
		return nil
	}))
	require.False(t, p.PendingVote)
}

func TestUpdatePoll(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{status("1", "1")}}))

	poll := entity.Poll{ID: "p", Expired: true, Options: []model.PollOption{{Title: "a", VotesCount: 3}}}
	require.NoError(t, e.UpdatePoll(ctx, "1", poll))
	require.ErrorIs(t, e.UpdatePoll(ctx, "missing", poll), errs.ErrNotFound)

	s, _ := readStatus(t, e, "1")
	require.Equal(t, "p", s.PollID)
}

func TestDeleteStatus_Cascades(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	original := status("1", "1")
	boost := status("2", "2")
	boost.Reblog = &original

	require.NoError(t, e.Apply(ctx, Batch{
		Statuses: []entity.Status{boost, status("3", "1")},
		Notifications: []entity.Notification{
			{ID: "n1", Type: "reblog", Account: acct("2"), Status: &original, CreatedAt: created},
			{ID: "n2", Type: "follow", Account: acct("2"), CreatedAt: created},
		},
	}))
	require.NoError(t, e.Store().Update(ctx, func(tx *store.Tx) error {
		tx.PutCollection(model.Collection{Name: "timeline:home", Element: model.KindStatus,
			Entries: []model.Entry{{ID: "3"}, {ID: "2", GapBefore: true}, {ID: "1"}}})
		tx.PutCollection(model.Collection{Name: "profile:1:statuses", Element: model.KindStatus,
			Entries: []model.Entry{{ID: "1"}}})
		tx.PutCollection(model.Collection{Name: "notifications:all", Element: model.KindNotification,
			Entries: []model.Entry{{ID: "n2"}, {ID: "n1"}}})
		return nil
	}))

	require.NoError(t, e.DeleteStatus(ctx, "1"))
	require.ErrorIs(t, e.DeleteStatus(ctx, "1"), errs.ErrNotFound)

	require.NoError(t, e.Store().View(func(r store.Reader) error {
		_, ok := r.Status("1")
		require.False(t, ok)
		_, ok = r.Status("2")
		require.False(t, ok, "reblog of a deleted status goes with it")
		_, ok = r.Notification("n1")
		require.False(t, ok)
		_, ok = r.Notification("n2")
		require.True(t, ok)

		home, _ := r.Collection("timeline:home")
		require.Equal(t, []model.Entry{{ID: "3"}}, home.Entries)
		profile, _ := r.Collection("profile:1:statuses")
		require.Empty(t, profile.Entries)
		notes, _ := r.Collection("notifications:all")
		require.Equal(t, []string{"n2"}, notes.IDs())
		return nil
	}))
}

func TestCompact(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Apply(ctx, Batch{
		Statuses: []entity.Status{status("1", "1"), status("2", "2")},
	}))
	require.NoError(t, e.Store().Update(ctx, func(tx *store.Tx) error {
		tx.PutCollection(model.Collection{Name: "timeline:home", Element: model.KindStatus,
			Entries: []model.Entry{{ID: "1"}}})
		return nil
	}))

	res, err := e.Compact(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, CompactResult{Accounts: 1, Statuses: 1}, res)

	_, ok := readStatus(t, e, "1")
	require.True(t, ok)
	_, ok = readStatus(t, e, "2")
	require.False(t, ok)
}

func TestCompact_KeepsWatchedAndLocalState(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	spoiler := status("4", "4")
	spoiler.SpoilerText = "cw"
	require.NoError(t, e.Apply(ctx, Batch{
		Statuses: []entity.Status{status("1", "1"), status("2", "2"), status("3", "3"), spoiler},
		Polls:    []entity.Poll{{ID: "p", Options: []model.PollOption{{Title: "a"}, {Title: "b"}}}},
	}))
	_, err := e.ToggleContentHidden(ctx, "3")
	require.NoError(t, err)
	require.NoError(t, e.RecordVote(ctx, "p", []int{0}))

	watched := func(k model.Key) bool { return k == model.StatusKey("2") }
	res, err := e.Compact(ctx, watched)
	require.NoError(t, err)
	require.Equal(t, CompactResult{Accounts: 2, Statuses: 2}, res)

	for _, id := range []string{"2", "3"} {
		_, ok := readStatus(t, e, id)
		require.True(t, ok, "status %s", id)
	}
	for _, id := range []string{"1", "4"} {
		_, ok := readStatus(t, e, id)
		require.False(t, ok, "status %s", id)
	}

	// the override survives a refetch
	require.NoError(t, e.Apply(ctx, Batch{Statuses: []entity.Status{status("3", "3")}}))
	s, _ := readStatus(t, e, "3")
	require.True(t, s.Local.ContentHidden)

	require.NoError(t, e.Store().View(func(r store.Reader) error {
		_, ok := r.Poll("p")
		require.True(t, ok)
		_, ok = r.Account("2")
		require.True(t, ok)
		return nil
	}))
}

func TestApply_DoesNotRetainCallerSlices(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	options := []model.PollOption{{Title: "a"}, {Title: "b"}}
	require.NoError(t, e.Apply(ctx, Batch{Polls: []entity.Poll{{ID: "p", Options: options}}}))

	options[0].VotesCount = 999

	require.NoError(t, e.Store().View(func(r store.Reader) error {
		p, _ := r.Poll("p")
		require.Zero(t, p.Options[0].VotesCount)
		return nil
	}))
}

type observerFunc func([]model.Key)

func (f observerFunc) Committed(keys []model.Key) { f(keys) }
func (f observerFunc) StoreClosed()               {}
