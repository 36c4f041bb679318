package rumble

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/platform/internal"
	"github.com/streamalert-go/streamalert-go/src/pkg/utils"
	"github.com/streamalert-go/streamalert-go/src/types"
)

const userPageURL = "https://rumble.com/user/%s"

func init() {
	platform.Register(&Checker{BaseChecker: internal.NewBaseChecker(types.Rumble)})
}

type Checker struct {
	internal.BaseChecker
}

var (
	titleRe        = regexp.MustCompile(`<h3 class=["']video-item--title["']?>(.*?)</h3>`)
	imageRe        = regexp.MustCompile(`<img class=["']video-item--img["']?[^>]*src=["']?([^"'\s>]+)["']?[^>]*>`)
	watchingRe     = regexp.MustCompile(`<span class=["']video-item--watching["']?>([\d.]+[KMB]? watching)</span>`)
	profileImageRe = regexp.MustCompile(`<img class=["']listing-header--thumb["']?[^>]*src=["']?([^"'\s>]+)["']?[^>]*>`)
	followersRe    = regexp.MustCompile(`<span class=["']channel-header--followers["']?>([\d.,]+[KMB]?) Followers</span>`)
	startedAtRe    = regexp.MustCompile(`<time class=["']video-item--meta video-item--time["']? datetime=["']?([^"'\s>]+)["']?`)
	categoryRe     = regexp.MustCompile(`<span class=["']video-item--category["']?>(.*?)</span>`)
	dataCategoryRe = regexp.MustCompile(`data-category=["']([^"']+)["']`)
	htmlTagRe      = regexp.MustCompile(`<[^>]*>`)
)

func (c *Checker) Check(ctx context.Context, e *entity.TrackedEntity) (platform.Status, error) {
	name, err := entity.SanitizeName(e.Name, types.Rumble)
	if err != nil {
		return c.Degraded(e, err)
	}

	// The user page lists the newest video first; a live broadcast is
	// marked there. The canonical channel URL differs from the page
	// being scraped.
	page, err := c.FetchPage(fmt.Sprintf(userPageURL, url.PathEscape(name)))
	if err != nil {
		return c.Degraded(e, err)
	}

	if !strings.Contains(page, `data-value="LIVE"`) && !strings.Contains(page, `"isLive":true`) {
		return c.Offline(e), nil
	}

	snap := c.Offline(e).Snapshot
	snap.Title = "Live Stream"
	if m := titleRe.FindStringSubmatch(page); m != nil {
		snap.Title = strings.TrimSpace(m[1])
	}
	if m := imageRe.FindStringSubmatch(page); m != nil {
		snap.ImageURL = m[1]
	}
	if m := profileImageRe.FindStringSubmatch(page); m != nil {
		snap.ProfileImageURL = m[1]
	}
	if m := watchingRe.FindStringSubmatch(page); m != nil {
		if n, ok := utils.ParseCount(strings.TrimSuffix(m[1], " watching")); ok {
			snap.Viewers = &n
		}
	}
	if m := followersRe.FindStringSubmatch(page); m != nil {
		if n, ok := utils.ParseCount(m[1]); ok {
			snap.FollowersCount = &n
		}
	}
	if m := startedAtRe.FindStringSubmatch(page); m != nil {
		if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
			snap.StartedAt = &t
		}
	}
	if m := categoryRe.FindStringSubmatch(page); m != nil {
		snap.Category = strings.TrimSpace(htmlTagRe.ReplaceAllString(m[1], ""))
	} else if m := dataCategoryRe.FindStringSubmatch(page); m != nil {
		snap.Category = strings.TrimSpace(m[1])
	}
	snap.Verified = strings.Contains(page, "channel-header--verified verification-badge-icon")

	return platform.Status{IsLive: true, Snapshot: snap}, nil
}
