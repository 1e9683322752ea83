package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollection_Without(t *testing.T) {
	c := Collection{
		Name:    "timeline:home",
		Element: KindStatus,
		Entries: []Entry{{ID: "5"}, {ID: "4", GapBefore: true}, {ID: "3"}, {ID: "2"}},
	}

	got, changed := c.Without(func(id string) bool { return id == "4" })
	require.True(t, changed)
	require.Equal(t, []Entry{{ID: "5"}, {ID: "3", GapBefore: true}, {ID: "2"}}, got.Entries)
	require.Equal(t, []string{"5", "4", "3", "2"}, c.IDs(), "source must be left intact")

	same, changed := c.Without(func(string) bool { return false })
	require.False(t, changed)
	require.Equal(t, c, same)
}

func TestCollection_Boundaries(t *testing.T) {
	var empty Collection
	require.Empty(t, empty.Head())
	require.Empty(t, empty.Tail())
	require.Equal(t, -1, empty.Index("1"))

	c := Collection{Entries: []Entry{{ID: "3"}, {ID: "2", GapBefore: true}, {ID: "1"}}}
	require.Equal(t, "3", c.Head())
	require.Equal(t, "1", c.Tail())
	require.Equal(t, 1, c.Index("2"))
	require.Equal(t, []string{"2"}, c.Gaps())
}

func TestParsers_FallBackToUnknown(t *testing.T) {
	require.Equal(t, VisibilityPrivate, ParseVisibility("private"))
	require.Equal(t, VisibilityUnknown, ParseVisibility("local_only"))
	require.Equal(t, NotificationPoll, ParseNotificationType("poll"))
	require.Equal(t, NotificationUnknown, ParseNotificationType("moderation_warning"))
}
