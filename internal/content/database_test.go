package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/fedicache/internal/entity"
	"github.com/and161185/fedicache/internal/live"
	"github.com/and161185/fedicache/internal/model"
	"github.com/and161185/fedicache/internal/store"
	"github.com/and161185/fedicache/internal/timeline"
	"github.com/and161185/fedicache/internal/upsert"
)

func newDatabase(t *testing.T) *Database {
	t.Helper()
	log := zaptest.NewLogger(t)
	d := New(store.New("test", nil, log), Options{TimelineLimit: 2}, log)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func receive[T any](t *testing.T, sub *live.Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.Updates():
		require.True(t, ok)
		return v
	case <-time.After(time.Second):
		t.Fatal("no emission")
	}
	var zero T
	return zero
}

func fetched(id, author string) entity.Status {
	return entity.Status{
		ID:        id,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Account:   entity.Account{ID: author, Username: author, Acct: author},
	}
}

func TestWatchAccount_PlaceholderUntilStored(t *testing.T) {
	d := newDatabase(t)
	sub, err := d.WatchAccount("1", &model.Account{ID: "1", Username: "guess"})
	require.NoError(t, err)
	defer sub.Cancel()

	first := receive(t, sub)
	require.True(t, first.Placeholder)
	require.Equal(t, "guess", first.Value.Account.Username)

	require.NoError(t, d.Apply(context.Background(), upsert.Batch{
		Accounts: []entity.Account{{ID: "1", Username: "real", Acct: "real"}},
	}))
	got := receive(t, sub)
	require.False(t, got.Placeholder)
	require.True(t, got.Present)
	require.Equal(t, "real", got.Value.Account.Username)
}

func TestWatchAccount_AbsentWithoutPlaceholder(t *testing.T) {
	d := newDatabase(t)
	sub, err := d.WatchAccount("1", nil)
	require.NoError(t, err)
	defer sub.Cancel()
	require.False(t, receive(t, sub).Present)
}

func TestWatchStatuses_TimelineFlow(t *testing.T) {
	ctx := context.Background()
	d := newDatabase(t)
	sub, err := d.WatchStatuses(model.HomeTimeline)
	require.NoError(t, err)
	defer sub.Cancel()
	require.False(t, receive(t, sub).Fetched)

	require.NoError(t, d.Timelines().ReplacePage(ctx, model.HomeTimeline, timeline.Page{
		IDs:      []string{"2", "1"},
		Entities: upsert.Batch{Statuses: []entity.Status{fetched("2", "a"), fetched("1", "b")}},
	}))
	page := receive(t, sub)
	require.True(t, page.Fetched)
	require.Len(t, page.Items, 2)
	require.Equal(t, "a", page.Items[0].Value.Account.Account.ID)

	_, err = d.Engine().ToggleContentHidden(ctx, "1")
	require.NoError(t, err)
	page = receive(t, sub)
	require.True(t, page.Items[1].Value.Status.Local.ContentHidden)
}

func TestWatchStatus_ClosedDatabaseEndsSubscription(t *testing.T) {
	d := newDatabase(t)
	sub, err := d.WatchStatus("1")
	require.NoError(t, err)
	require.False(t, receive(t, sub).Present)

	require.NoError(t, d.Close())
	_, ok := <-sub.Updates()
	require.False(t, ok)
}

func TestMaintain(t *testing.T) {
	ctx := context.Background()
	d := newDatabase(t)
	require.NoError(t, d.Timelines().ReplacePage(ctx, model.HomeTimeline, timeline.Page{
		IDs: []string{"3", "2", "1"},
		Entities: upsert.Batch{Statuses: []entity.Status{
			fetched("3", "a"), fetched("2", "a"), fetched("1", "b"),
		}},
	}))

	res, err := d.Maintain(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Pruned)
	require.Equal(t, upsert.CompactResult{Statuses: 1, Accounts: 1}, res.Compacted)

	st, err := d.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, st.Statuses)
	require.Equal(t, 1, st.Accounts)
}

func TestMaintain_KeepsWatchedStatus(t *testing.T) {
	ctx := context.Background()
	d := newDatabase(t)
	require.NoError(t, d.Apply(ctx, upsert.Batch{Statuses: []entity.Status{fetched("7", "a"), fetched("8", "b")}}))

	sub, err := d.WatchStatus("7")
	require.NoError(t, err)
	defer sub.Cancel()
	require.True(t, receive(t, sub).Present)

	res, err := d.Maintain(ctx)
	require.NoError(t, err)
	require.Equal(t, upsert.CompactResult{Statuses: 1, Accounts: 1}, res.Compacted)

	select {
	case v := <-sub.Updates():
		t.Fatalf("unexpected emission %+v", v)
	default:
	}
	st, err := d.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, st.Statuses)
	require.Equal(t, 1, st.Accounts)

	sub.Cancel()
	res, err = d.Maintain(ctx)
	require.NoError(t, err)
	require.Equal(t, upsert.CompactResult{Statuses: 1, Accounts: 1}, res.Compacted)
}
