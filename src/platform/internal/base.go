// Package internal carries the shared plumbing for platform checkers.
package internal

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hr3lxphr6j/requests"
	"github.com/sirupsen/logrus"

	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/platform"
	"github.com/streamalert-go/streamalert-go/src/types"
)

// CommonUserAgent is a desktop browser UA; several platforms serve
// reduced pages to unknown agents.
var CommonUserAgent = requests.UserAgent(
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

// checkTimeout bounds a single upstream request. This is the
// external-facing 10s contract for adapter calls.
const checkTimeout = 10 * time.Second

type BaseChecker struct {
	platform       types.Platform
	HTTPClient     *http.Client
	RequestSession *requests.Session
	Logger         *logrus.Entry
}

func NewBaseChecker(p types.Platform) BaseChecker {
	client := &http.Client{Timeout: checkTimeout}
	return BaseChecker{
		platform:       p,
		HTTPClient:     client,
		RequestSession: requests.NewSession(client),
		Logger:         logrus.WithField("platform", p.String()),
	}
}

func (b *BaseChecker) Platform() types.Platform {
	return b.platform
}

// Offline builds a not-live status for e, keeping only the recomputed
// public URL. Used for both clean offline results and the skeleton of
// degraded ones.
func (b *BaseChecker) Offline(e *entity.TrackedEntity) platform.Status {
	snap := entity.Snapshot{}
	if u, err := entity.ProfileURL(b.platform, e.Name); err == nil {
		snap.URL = u
	}
	return platform.Status{IsLive: false, Snapshot: snap}
}

// Degraded converts an upstream failure into the adapter contract:
// a usable not-live status carrying the entity's previous snapshot
// fields with a recomputed URL, plus a typed CheckError. Nothing else
// ever crosses the checker boundary.
func (b *BaseChecker) Degraded(e *entity.TrackedEntity, err error) (platform.Status, error) {
	st := b.Offline(e)
	if e.Snapshot != nil {
		url := st.Snapshot.URL
		st.Snapshot = *e.Snapshot
		if url != "" {
			st.Snapshot.URL = url
		}
	}
	return st, platform.NewCheckError(b.platform, e.Name, err)
}

// FetchPage GETs a profile page and returns the body as text.
func (b *BaseChecker) FetchPage(url string, options ...requests.RequestOption) (string, error) {
	options = append([]requests.RequestOption{CommonUserAgent}, options...)
	resp, err := b.RequestSession.Get(url, options...)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{code: resp.StatusCode}
	}
	body, err := resp.Bytes()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.code)
}
