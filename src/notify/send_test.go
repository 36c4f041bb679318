package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamalert-go/streamalert-go/src/detector"
	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/scheduler"
	"github.com/streamalert-go/streamalert-go/src/types"
)

func testAlert(t *testing.T, tr detector.Transition, snap entity.Snapshot) *scheduler.Alert {
	t.Helper()
	e, err := entity.New(types.Twitch, "alice", "")
	require.NoError(t, err)
	return &scheduler.Alert{
		GroupID:    "guild-1",
		Entity:     e,
		Transition: tr,
		Status:     platform.Status{IsLive: tr != detector.WentOffline, Snapshot: snap},
	}
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage(testAlert(t, detector.WentLive, entity.Snapshot{
		Title:    "speedrun attempts",
		Category: "Celeste",
		URL:      "https://www.twitch.tv/alice",
	}))
	assert.Contains(t, msg, "alice is now live on twitch!")
	assert.Contains(t, msg, "speedrun attempts")
	assert.Contains(t, msg, "Category: Celeste")
	assert.Contains(t, msg, "https://www.twitch.tv/alice")

	msg = BuildMessage(testAlert(t, detector.Changed, entity.Snapshot{
		Category: "Just Chatting",
		URL:      "https://www.twitch.tv/alice",
	}))
	assert.Contains(t, msg, "still live")
	assert.Contains(t, msg, "Now playing: Just Chatting")

	msg = BuildMessage(testAlert(t, detector.WentOffline, entity.Snapshot{
		URL: "https://www.twitch.tv/alice",
	}))
	assert.Contains(t, msg, "alice has gone offline on twitch.")
}
