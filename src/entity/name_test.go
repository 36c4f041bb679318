package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamalert-go/streamalert-go/src/types"
)

func TestSanitizeName(t *testing.T) {
	s, err := SanitizeName("Some_User-1", types.Twitch)
	assert.NoError(t, err)
	assert.Equal(t, "Some_User-1", s)

	s, err = SanitizeName("  padded.name  ", types.Kick)
	assert.NoError(t, err)
	assert.Equal(t, "padded.name", s)

	// Names that stripping would alter are rejected, never rewritten:
	// "../../etc" must not quietly become "....etc".
	for _, bad := range []string{"../../etc", "a b<script>", `a/b\c`, "", "   ", "<>&\"'"} {
		_, err := SanitizeName(bad, types.Twitch)
		assert.Error(t, err, "expected rejection for %q", bad)
		var ine *InvalidNameError
		assert.True(t, errors.As(err, &ine))
	}

	long := strings.Repeat("a", 200)
	s, err = SanitizeName(long, types.YouTube)
	assert.NoError(t, err)
	assert.Len(t, s, 100)
}

func TestProfileURL(t *testing.T) {
	u, err := ProfileURL(types.Twitch, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "https://twitch.tv/alice", u)

	u, err = ProfileURL(types.YouTube, "alice")
	assert.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/@alice", u)

	_, err = ProfileURL(types.Twitch, "../../etc")
	assert.Error(t, err)

	_, err = ProfileURL(types.Platform("unknown"), "alice")
	assert.Error(t, err)
}

func TestNewEntity(t *testing.T) {
	e, err := New(types.Kick, "bob", "chan-1")
	assert.NoError(t, err)
	assert.Equal(t, types.EntityID("kick:bob"), e.ID)
	assert.True(t, e.Valid())
	assert.False(t, e.IsLive)

	_, err = New(types.Kick, "b<o>b!", "chan-1")
	assert.Error(t, err)
}

func TestMarkLiveAdvancesForwardOnly(t *testing.T) {
	e, _ := New(types.Twitch, "alice", "")
	first := e.LastLiveAt
	e.MarkLive(first.Add(-1), &Snapshot{Title: "t"})
	assert.Equal(t, first, e.LastLiveAt)

	later := first.Add(1)
	e.MarkLive(later, &Snapshot{Title: "t"})
	assert.Equal(t, later, e.LastLiveAt)

	// A failed check keeps the previous snapshot and live flag.
	e.MarkFailed("boom")
	assert.True(t, e.IsLive)
	assert.Equal(t, later, e.LastLiveAt)
	assert.Equal(t, "boom", e.LastError)
}

func TestGroupSettingsPlatformEnabled(t *testing.T) {
	var s *GroupSettings
	assert.True(t, s.PlatformEnabled(types.Twitch))

	s = &GroupSettings{EnabledPlatforms: []types.Platform{types.Kick}}
	assert.True(t, s.PlatformEnabled(types.Kick))
	assert.False(t, s.PlatformEnabled(types.Twitch))
}
