package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRPC_Verify(t *testing.T) {
	var rpc *RPC
	assert.NoError(t, rpc.verify())
	rpc = new(RPC)
	rpc.Bind = "foo@bar"
	assert.NoError(t, rpc.verify())
	rpc.Enable = true
	assert.Error(t, rpc.verify())
}

func TestConfig_Verify(t *testing.T) {
	var cfg *Config
	assert.Error(t, cfg.Verify())

	cfg = NewConfig()
	assert.NoError(t, cfg.Verify())

	cfg.Interval = 0
	assert.Error(t, cfg.Verify())
	cfg.Interval = 60

	cfg.DetectionPolicy = "viewer_count"
	assert.Error(t, cfg.Verify())
	cfg.DetectionPolicy = DetectByTitle
	assert.NoError(t, cfg.Verify())

	cfg.DatabasePath = ""
	assert.Error(t, cfg.Verify())
}

func TestNewConfigWithBytes(t *testing.T) {
	raw := []byte(`
interval: 60
detection_policy: title
notify:
  on_offline: false
  telegram:
    enable: true
    botToken: tok
    chatID: "42"
platform_min_intervals:
  twitch: 5
`)
	c, err := NewConfigWithBytes(raw)
	assert.NoError(t, err)
	assert.Equal(t, 60, c.Interval)
	assert.Equal(t, DetectByTitle, c.DetectionPolicy)
	assert.False(t, c.Notify.OnOffline)
	assert.True(t, c.Notify.Telegram.Enable)
	assert.Equal(t, 5, c.PlatformMinIntervals["twitch"])

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, c.Concurrency)
	assert.Equal(t, 10, c.CheckTimeout)
	assert.True(t, c.RPC.Enable)
}
