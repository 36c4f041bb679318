package youtube

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/platform/internal"
	"github.com/streamalert-go/streamalert-go/src/pkg/utils"
	"github.com/streamalert-go/streamalert-go/src/types"
)

func init() {
	platform.Register(&Checker{BaseChecker: internal.NewBaseChecker(types.YouTube)})
}

type Checker struct {
	internal.BaseChecker
}

// YouTube has no public no-auth live endpoint, so the handle page is
// scraped. The markers and field regexes track the current page layout
// and are expected to need maintenance when it changes.
var (
	titleRe       = regexp.MustCompile(`"label":"([^"]+) by`)
	titleRunsRe   = regexp.MustCompile(`"title":\{"runs":\[\{"text":"([^"]+)"`)
	imageRe       = regexp.MustCompile(`"url":"(https://i\.ytimg\.com/[^"]+)",(?:[^}]*"width":336)`)
	watchingRe    = regexp.MustCompile(`"viewCountText":\{"runs":\[\{"text":"([\d,]+)"\},\{"text":" watching"\}\]\}`)
	viewCountRe   = regexp.MustCompile(`"viewCount":"(\d+)"`)
	descriptionRe = regexp.MustCompile(`"descriptionSnippet":\s*\{"runs":\s*\[\{"text":"([^"]+)"\}\]\}`)
	subscribersRe = regexp.MustCompile(`"subscriberCountText":\s*\{"simpleText":"([\d\.KMB]+) subscribers"\}`)
)

func (c *Checker) Check(ctx context.Context, e *entity.TrackedEntity) (platform.Status, error) {
	profileURL, err := entity.ProfileURL(types.YouTube, e.Name)
	if err != nil {
		return c.Degraded(e, err)
	}

	page, err := c.FetchPage(profileURL)
	if err != nil {
		return c.Degraded(e, err)
	}

	if !strings.Contains(page, `"text":"LIVE"`) && !strings.Contains(page, `"isLiveContent":true`) {
		return c.Offline(e), nil
	}

	snap := entity.Snapshot{Title: "Live Stream", URL: profileURL, Verified: strings.Contains(page, `"isVerified":true`)}
	if m := titleRe.FindStringSubmatch(page); m != nil {
		snap.Title = m[1]
	} else if m := titleRunsRe.FindStringSubmatch(page); m != nil {
		snap.Title = m[1]
	}
	if m := imageRe.FindStringSubmatch(page); m != nil {
		snap.ImageURL = m[1]
	}
	if m := watchingRe.FindStringSubmatch(page); m != nil {
		if n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			snap.Viewers = &n
		}
	} else if m := viewCountRe.FindStringSubmatch(page); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			snap.Viewers = &n
		}
	}
	if m := descriptionRe.FindStringSubmatch(page); m != nil {
		snap.Bio = strings.ReplaceAll(m[1], `\n`, "\n")
	}
	if m := subscribersRe.FindStringSubmatch(page); m != nil {
		if n, ok := utils.ParseCount(m[1]); ok {
			snap.FollowersCount = &n
		}
	}

	return platform.Status{IsLive: true, Snapshot: snap}, nil
}
