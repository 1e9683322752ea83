package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/repository"
)

type fakeRepo struct {
	mu       sync.Mutex
	loaded   repository.ChangeSet
	applied  []repository.ChangeSet
	applyErr error
	closed   bool
}

var _ repository.ContentRepository = (*fakeRepo)(nil)

func (f *fakeRepo) Load(context.Context) (repository.ChangeSet, error) { return f.loaded, nil }
func (f *fakeRepo) Apply(_ context.Context, cs repository.ChangeSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, cs)
	return nil
}
func (f *fakeRepo) Close() error {
	f.closed = true
	return nil
}

type recorder struct {
	batches [][]model.Key
	closed  int
}

func (r *recorder) Committed(keys []model.Key) { r.batches = append(r.batches, keys) }
func (r *recorder) StoreClosed()               { r.closed++ }

func TestUpdate_CommitsAndNotifiesOnce(t *testing.T) {
	repo := &fakeRepo{}
	s := New("test", repo, zaptest.NewLogger(t))
	rec := &recorder{}
	s.AddObserver(rec)

	err := s.Update(context.Background(), func(tx *Tx) error {
		tx.PutAccount(model.Account{ID: "1", Username: "alice"})
		tx.PutStatus(model.Status{ID: "10", AccountID: "1"})
		got, ok := tx.Status("10")
		require.True(t, ok)
		require.Equal(t, "1", got.AccountID)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, rec.batches, 1)
	require.ElementsMatch(t, []model.Key{model.AccountKey("1"), model.StatusKey("10")}, rec.batches[0])
	require.Len(t, repo.applied, 1)
	require.Len(t, repo.applied[0].Accounts, 1)

	require.NoError(t, s.View(func(r Reader) error {
		a, ok := r.Account("1")
		require.True(t, ok)
		require.Equal(t, "alice", a.Username)
		_, ok = r.Account("missing")
		require.False(t, ok)
		return nil
	}))
}

func TestUpdate_NoOpWriteEmitsNothing(t *testing.T) {
	repo := &fakeRepo{}
	s := New("test", repo, nil)
	rec := &recorder{}
	s.AddObserver(rec)
	ctx := context.Background()

	put := func(tx *Tx) error {
		tx.PutAccount(model.Account{ID: "1", Username: "alice"})
		return nil
	}
	require.NoError(t, s.Update(ctx, put))
	require.NoError(t, s.Update(ctx, put))

	require.Len(t, rec.batches, 1)
	require.Len(t, repo.applied, 1)
}

func TestUpdate_CallbackErrorAppliesNothing(t *testing.T) {
	s := New("test", nil, nil)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(tx *Tx) error {
		tx.PutAccount(model.Account{ID: "1"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	st, err := s.Stats()
	require.NoError(t, err)
	require.Zero(t, st.Accounts)
}

func TestUpdate_PersistFailureLeavesStateUnchanged(t *testing.T) {
	repo := &fakeRepo{applyErr: errors.New("disk full")}
	s := New("test", repo, zaptest.NewLogger(t))
	rec := &recorder{}
	s.AddObserver(rec)

	err := s.Update(context.Background(), func(tx *Tx) error {
		tx.PutAccount(model.Account{ID: "1"})
		return nil
	})
	require.Error(t, err)
	require.Empty(t, rec.batches)

	require.NoError(t, s.View(func(r Reader) error {
		_, ok := r.Account("1")
		require.False(t, ok)
		return nil
	}))
}

func TestUpdate_DeleteAndReadOwnWrites(t *testing.T) {
	s := New("test", nil, nil)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		tx.PutStatus(model.Status{ID: "1"})
		tx.PutStatus(model.Status{ID: "2"})
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		require.True(t, tx.DeleteStatus("1"))
		require.False(t, tx.DeleteStatus("1"))
		_, ok := tx.Status("1")
		require.False(t, ok)

		tx.PutStatus(model.Status{ID: "3"})
		var ids []string
		tx.EachStatus(func(st model.Status) bool {
			ids = append(ids, st.ID)
			return true
		})
		require.ElementsMatch(t, []string{"2", "3"}, ids)
		return nil
	}))

	st, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, st.Statuses)
}

func TestOpen_LoadsRepository(t *testing.T) {
	repo := &fakeRepo{loaded: repository.ChangeSet{
		Accounts:    []model.Account{{ID: "1"}},
		Collections: []model.Collection{{Name: "timeline:home", Element: model.KindStatus}},
	}}
	s, err := Open(context.Background(), "test", repo, zaptest.NewLogger(t))
	require.NoError(t, err)

	st, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, st.Accounts)
	require.Equal(t, 1, st.Collections)
}

func TestClose_RejectsFurtherWork(t *testing.T) {
	repo := &fakeRepo{}
	s := New("test", repo, nil)
	rec := &recorder{}
	s.AddObserver(rec)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.True(t, repo.closed)
	require.Equal(t, 1, rec.closed)

	err := s.Update(context.Background(), func(*Tx) error { return nil })
	require.ErrorIs(t, err, errs.ErrStoreClosed)
	err = s.View(func(Reader) error { return nil })
	require.ErrorIs(t, err, errs.ErrStoreClosed)
}

func TestTx_UseAfterBatchPoisonsStore(t *testing.T) {
	s := New("test", nil, zaptest.NewLogger(t))
	var leaked *Tx
	require.NoError(t, s.Update(context.Background(), func(tx *Tx) error {
		leaked = tx
		return nil
	}))

	require.Panics(t, func() { leaked.PutAccount(model.Account{ID: "1"}) })

	err := s.Update(context.Background(), func(*Tx) error { return nil })
	require.ErrorIs(t, err, errs.ErrStoreCorrupted)
}

func TestUpdate_CanceledContext(t *testing.T) {
	s := New("test", nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Update(ctx, func(*Tx) error { return nil }), context.Canceled)
}

func TestRecords_DoNotShareMemoryWithCallers(t *testing.T) {
	s := New("test", nil, zaptest.NewLogger(t))
	ctx := context.Background()

	options := []model.PollOption{{Title: "yes"}, {Title: "no"}}
	voters := 3
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		tx.PutPoll(model.Poll{ID: "p", Options: options, VotersCount: &voters})
		tx.PutStatus(model.Status{ID: "1", Local: model.Overrides{Source: &model.StatusSource{Text: "draft"}}})
		tx.PutCollection(model.Collection{Name: "home", Element: model.KindStatus, Entries: []model.Entry{{ID: "1"}}})
		return nil
	}))

	// writes through the caller's own memory
	options[0].VotesCount = 999
	voters = 100

	read := func() (model.Poll, model.Status, model.Collection) {
		var (
			p  model.Poll
			st model.Status
			c  model.Collection
		)
		require.NoError(t, s.View(func(r Reader) error {
			p, _ = r.Poll("p")
			st, _ = r.Status("1")
			c, _ = r.Collection("home")
			return nil
		}))
		return p, st, c
	}

	p, st, c := read()
	require.Zero(t, p.Options[0].VotesCount)
	require.Equal(t, 3, *p.VotersCount)

	// writes through a snapshot
	p.Options[1].VotesCount = 42
	*p.VotersCount = 7
	st.Local.Source.Text = "edited"
	c.Entries[0].GapBefore = true

	p, st, c = read()
	require.Zero(t, p.Options[1].VotesCount)
	require.Equal(t, 3, *p.VotersCount)
	require.Equal(t, "draft", st.Local.Source.Text)
	require.False(t, c.Entries[0].GapBefore)

	// reads inside a batch are copies too
	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		got, _ := tx.Poll("p")
		got.Options[0].VotesCount = 5
		tx.EachPoll(func(p model.Poll) bool {
			p.Options[0].Title = "maybe"
			return true
		})
		return nil
	}))
	p, _, _ = read()
	require.Equal(t, model.PollOption{Title: "yes"}, p.Options[0])
}
