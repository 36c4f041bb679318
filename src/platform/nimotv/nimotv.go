package nimotv

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/platform/internal"
	"github.com/streamalert-go/streamalert-go/src/types"
)

func init() {
	platform.Register(&Checker{BaseChecker: internal.NewBaseChecker(types.NimoTV)})
}

type Checker struct {
	internal.BaseChecker
}

// Nimo ships several page variants; every known live marker and field
// spelling is probed in order.
var (
	liveMarkers = []string{
		`"isLive":true`,
		`"status":"live"`,
		`class="live-status"`,
		`data-live="true"`,
		`"streamStatus":1`,
	}

	titleRes = []*regexp.Regexp{
		regexp.MustCompile(`"title":"([^"]+)"`),
		regexp.MustCompile(`"streamTitle":"([^"]+)"`),
		regexp.MustCompile(`<title>([^<]+)</title>`),
	}
	imageRes = []*regexp.Regexp{
		regexp.MustCompile(`"preview":"([^"]+)"`),
		regexp.MustCompile(`"thumbnail":"([^"]+)"`),
		regexp.MustCompile(`"cover":"([^"]+)"`),
	}
	viewersRes = []*regexp.Regexp{
		regexp.MustCompile(`"viewers?":(\d+)`),
		regexp.MustCompile(`"viewerCount":(\d+)`),
		regexp.MustCompile(`"onlineCount":(\d+)`),
	}
	followersRes = []*regexp.Regexp{
		regexp.MustCompile(`"followers?":(\d+)`),
		regexp.MustCompile(`"followerCount":(\d+)`),
		regexp.MustCompile(`"fansCount":(\d+)`),
	}
	categoryRes = []*regexp.Regexp{
		regexp.MustCompile(`"category":"([^"]+)"`),
		regexp.MustCompile(`"game":"([^"]+)"`),
		regexp.MustCompile(`"gameTitle":"([^"]+)"`),
	}
	avatarRes = []*regexp.Regexp{
		regexp.MustCompile(`"avatar":"([^"]+)"`),
		regexp.MustCompile(`"userAvatar":"([^"]+)"`),
	}
	bioRes = []*regexp.Regexp{
		regexp.MustCompile(`"description":"([^"]+)"`),
		regexp.MustCompile(`"bio":"([^"]+)"`),
	}
	startTimeRes = []*regexp.Regexp{
		regexp.MustCompile(`"startTime":"([^"]+)"`),
		regexp.MustCompile(`"liveStartTime":"([^"]+)"`),
	}
)

func (c *Checker) Check(ctx context.Context, e *entity.TrackedEntity) (platform.Status, error) {
	profileURL, err := entity.ProfileURL(types.NimoTV, e.Name)
	if err != nil {
		return c.Degraded(e, err)
	}

	page, err := c.FetchPage(profileURL)
	if err != nil {
		return c.Degraded(e, err)
	}

	if !containsAny(page, liveMarkers) {
		return c.Offline(e), nil
	}

	snap := entity.Snapshot{Title: "Live Stream", URL: profileURL}
	if v := firstMatch(page, titleRes); v != "" {
		snap.Title = unescape(v)
	}
	snap.ImageURL = unescape(firstMatch(page, imageRes))
	snap.Category = unescape(firstMatch(page, categoryRes))
	snap.ProfileImageURL = unescape(firstMatch(page, avatarRes))
	snap.Bio = unescape(firstMatch(page, bioRes))
	snap.Verified = strings.Contains(page, `"verified":true`)
	if v := firstMatch(page, viewersRes); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.Viewers = &n
		}
	}
	if v := firstMatch(page, followersRes); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			snap.FollowersCount = &n
		}
	}
	if v := firstMatch(page, startTimeRes); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			snap.StartedAt = &t
		}
	}

	return platform.Status{IsLive: true, Snapshot: snap}, nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func firstMatch(s string, res []*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func unescape(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\\`, ``).Replace(s)
}
