package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hr3lxphr6j/requests"
	"github.com/tidwall/gjson"

	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/platform/internal"
	"github.com/streamalert-go/streamalert-go/src/types"
)

const (
	helixStreamsURL = "https://api.twitch.tv/helix/streams"
	gqlURL          = "https://gql.twitch.tv/gql"

	// Public web client id; grants unauthenticated read access to the
	// same data the twitch.tv frontend sees.
	publicClientID = "kimne78kx3ncx6brgo4mv6wki5h1ko"
)

func init() {
	platform.Register(&Checker{BaseChecker: internal.NewBaseChecker(types.Twitch)})
}

type Checker struct {
	internal.BaseChecker
}

var titleRe = regexp.MustCompile(`<title>([^<]+)</title>`)

// Check walks three acquisition methods in order: the public Helix
// endpoint, the GQL StreamMetadata query, and finally the channel page
// HTML. The first one that yields stream data wins.
func (c *Checker) Check(ctx context.Context, e *entity.TrackedEntity) (platform.Status, error) {
	profileURL, err := entity.ProfileURL(types.Twitch, e.Name)
	if err != nil {
		return c.Degraded(e, err)
	}

	if st, ok := c.checkHelix(e); ok {
		return st, nil
	}
	if st, ok := c.checkGQL(ctx, e); ok {
		return st, nil
	}

	page, err := c.FetchPage(profileURL)
	if err != nil {
		return c.Degraded(e, err)
	}
	if !strings.Contains(page, `"isLiveBroadcast":true`) {
		return c.Offline(e), nil
	}

	snap := entity.Snapshot{Title: "Live Stream", URL: profileURL}
	if m := titleRe.FindStringSubmatch(page); m != nil {
		snap.Title = strings.TrimSpace(strings.TrimSuffix(m[1], " - Twitch"))
	}
	return platform.Status{IsLive: true, Snapshot: snap}, nil
}

func (c *Checker) checkHelix(e *entity.TrackedEntity) (platform.Status, bool) {
	resp, err := c.RequestSession.Get(
		helixStreamsURL+"?user_login="+url.QueryEscape(e.Name),
		internal.CommonUserAgent,
		requests.Header("Client-ID", publicClientID),
	)
	if err != nil {
		c.Logger.WithError(err).WithField("name", e.Name).Debug("helix request failed")
		return platform.Status{}, false
	}
	if resp.StatusCode != http.StatusOK {
		return platform.Status{}, false
	}
	body, err := resp.Bytes()
	if err != nil {
		return platform.Status{}, false
	}
	stream := gjson.GetBytes(body, "data.0")
	if !stream.Exists() {
		// An empty data array means "not currently live", which is a
		// definitive answer, not a method failure.
		if gjson.GetBytes(body, "data").IsArray() {
			return c.Offline(e), true
		}
		return platform.Status{}, false
	}
	return platform.Status{IsLive: true, Snapshot: c.snapshotFromStream(e, stream)}, true
}

func (c *Checker) snapshotFromStream(e *entity.TrackedEntity, stream gjson.Result) entity.Snapshot {
	snap := c.Offline(e).Snapshot
	snap.Title = stream.Get("title").String()
	if snap.Title == "" {
		snap.Title = "Live Stream"
	}
	snap.Category = stream.Get("game_name").String()
	if v := stream.Get("viewer_count"); v.Exists() {
		viewers := v.Int()
		snap.Viewers = &viewers
	}
	if s := stream.Get("started_at").String(); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			snap.StartedAt = &t
		}
	}
	snap.ImageURL = expandThumbnail(stream.Get("thumbnail_url").String())
	return snap
}

func (c *Checker) checkGQL(ctx context.Context, e *entity.TrackedEntity) (platform.Status, bool) {
	payload := []map[string]any{{
		"operationName": "StreamMetadata",
		"variables":     map[string]string{"channelLogin": e.Name},
		"query": `query StreamMetadata($channelLogin: String!) {
  user(login: $channelLogin) {
    displayName
    followers { totalCount }
    stream {
      title
      game { displayName }
      viewersCount
      createdAt
      previewImageURL(width: 1920, height: 1080)
    }
  }
}`,
	}}
	raw, err := json.Marshal(payload)
	if err != nil {
		return platform.Status{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gqlURL, bytes.NewReader(raw))
	if err != nil {
		return platform.Status{}, false
	}
	req.Header.Set("Client-ID", publicClientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.WithError(err).WithField("name", e.Name).Debug("gql request failed")
		return platform.Status{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return platform.Status{}, false
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return platform.Status{}, false
	}
	user := gjson.GetBytes(buf.Bytes(), "0.data.user")
	if !user.Exists() {
		return platform.Status{}, false
	}
	stream := user.Get("stream")
	if !stream.Exists() || stream.Type == gjson.Null {
		return c.Offline(e), true
	}

	snap := c.Offline(e).Snapshot
	snap.Title = stream.Get("title").String()
	snap.Category = stream.Get("game.displayName").String()
	if v := stream.Get("viewersCount"); v.Exists() {
		viewers := v.Int()
		snap.Viewers = &viewers
	}
	if s := stream.Get("createdAt").String(); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			snap.StartedAt = &t
		}
	}
	if f := user.Get("followers.totalCount"); f.Exists() {
		followers := f.Int()
		snap.FollowersCount = &followers
	}
	snap.ImageURL = stream.Get("previewImageURL").String()
	return platform.Status{IsLive: true, Snapshot: snap}, true
}

// expandThumbnail fills Twitch's {width}x{height} thumbnail template.
func expandThumbnail(tmpl string) string {
	if tmpl == "" {
		return ""
	}
	r := strings.NewReplacer("{width}", "1920", "{height}", "1080")
	return r.Replace(tmpl)
}

