package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_PostAndList(t *testing.T) {
	feed := NewFeed(0)

	n := feed.Post(" Alice@Example.com ", LevelSuccess, "connected")
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "alice@example.com", n.UserEmail)

	list := feed.List("alice@example.com")
	require.Len(t, list, 1)
	assert.Equal(t, "connected", list[0].Text)
	assert.Equal(t, LevelSuccess, list[0].Level)

	assert.Empty(t, feed.List("bob@example.com"))
}

func TestFeed_AnonymousFallback(t *testing.T) {
	feed := NewFeed(10)
	feed.Post("", LevelError, "failed")

	list := feed.List(AnonymousUser)
	require.Len(t, list, 1)
	assert.Equal(t, AnonymousUser, list[0].UserEmail)
}

func TestFeed_Capacity(t *testing.T) {
	feed := NewFeed(3)
	for i := 0; i < 5; i++ {
		feed.Post("a@b.com", LevelInfo, fmt.Sprintf("msg-%d", i))
	}

	list := feed.List("a@b.com")
	require.Len(t, list, 3)
	assert.Equal(t, "msg-2", list[0].Text)
	assert.Equal(t, "msg-4", list[2].Text)
	assert.Equal(t, 3, feed.Total())
}

func TestFeed_Since(t *testing.T) {
	feed := NewFeed(10)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	feed.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	feed.Post("a@b.com", LevelInfo, "one")
	feed.Post("a@b.com", LevelInfo, "two")
	feed.Post("a@b.com", LevelInfo, "three")

	got := feed.Since("a@b.com", base.Add(time.Second))
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Text)
}

func TestFeed_ListReturnsCopy(t *testing.T) {
	feed := NewFeed(10)
	feed.Post("a@b.com", LevelInfo, "original")

	list := feed.List("a@b.com")
	list[0].Text = "mutated"

	assert.Equal(t, "original", feed.List("a@b.com")[0].Text)
}
