package kick

import (
	"context"
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

const channelAPIURL = "https://kick.com/api/v2/channels/"

func init() {
	platform.Register(&Checker{BaseChecker: internal.NewBaseChecker(types.Kick)})
}

type Checker struct {
	internal.BaseChecker
}

// sevenTVTagRe matches 7TV emote tags embedded in channel bios.
var sevenTVTagRe = regexp.MustCompile(`\[7TV:[^\]]+\]`)

func (c *Checker) Check(ctx context.Context, e *entity.TrackedEntity) (platform.Status, error) {
	name, err := entity.SanitizeName(e.Name, types.Kick)
	if err != nil {
		return c.Degraded(e, err)
	}

	resp, err := c.RequestSession.Get(
		channelAPIURL+url.PathEscape(name),
		internal.CommonUserAgent,
		requests.Header("Accept", "application/json"),
	)
	if err != nil {
		return c.Degraded(e, err)
	}
	if resp.StatusCode != http.StatusOK {
		return c.Degraded(e, &statusError{resp.StatusCode})
	}
	body, err := resp.Bytes()
	if err != nil {
		return c.Degraded(e, err)
	}

	live := gjson.GetBytes(body, "livestream")
	if !live.Exists() || !live.Get("is_live").Bool() {
		return c.Offline(e), nil
	}

	snap := c.Offline(e).Snapshot
	snap.Title = live.Get("session_title").String()
	if snap.Title == "" {
		snap.Title = "Live Stream"
	}
	snap.Category = live.Get("categories.0.name").String()
	if v := live.Get("viewer_count"); v.Exists() {
		viewers := v.Int()
		snap.Viewers = &viewers
	}
	if s := live.Get("start_time").String(); s != "" {
		if t, err := parseKickTime(s); err == nil {
			snap.StartedAt = &t
		}
	}
	snap.ProfileImageURL = gjson.GetBytes(body, "user.profile_pic").String()
	snap.ImageURL = live.Get("thumbnail.url").String()
	if snap.ImageURL == "" {
		snap.ImageURL = snap.ProfileImageURL
	}
	snap.Bio = strings.TrimSpace(sevenTVTagRe.ReplaceAllString(gjson.GetBytes(body, "user.bio").String(), ""))
	snap.Verified = gjson.GetBytes(body, "verified").Bool()
	if f := gjson.GetBytes(body, "followers_count"); f.Exists() {
		followers := f.Int()
		snap.FollowersCount = &followers
	}

	return platform.Status{IsLive: true, Snapshot: snap}, nil
}

// Kick reports start times as "2006-01-02 15:04:05" in UTC, without a
// zone designator.
func parseKickTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected HTTP status " + http.StatusText(e.code)
}
