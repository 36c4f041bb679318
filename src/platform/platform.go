// Package platform defines the live-status checker contract and the
// registry mapping platform names to implementations.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streamalert-go/streamalert-go/src/entity"
	"github.com/streamalert-go/streamalert-go/src/types"
)

// Status is the outcome of one live check.
type Status struct {
	IsLive   bool
	Snapshot entity.Snapshot
}

// CheckError is an adapter-local network or parse failure. It never
// escapes the adapter boundary as a panic; the scheduler records the
// message and keeps the previous snapshot as last-known-good.
type CheckError struct {
	Platform types.Platform
	Name     string
	Message  string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s check failed for %s: %s", e.Platform, e.Name, e.Message)
}

// NewCheckError wraps an underlying failure into a CheckError.
func NewCheckError(platform types.Platform, name string, err error) *CheckError {
	return &CheckError{Platform: platform, Name: name, Message: err.Error()}
}

// ErrNoChecker marks a platform without a registered checker. Treated
// like a check failure with a not-live result, never a crash.
var ErrNoChecker = errors.New("no checker registered for platform")

// Checker determines whether one tracked entity is currently live.
//
// Check must never panic across this boundary. On failure it still
// returns a usable Status: the entity's previous fields carried through
// with a recomputed public profile URL, so callers can keep displaying
// last-known data. The error, when non-nil, is a *CheckError.
type Checker interface {
	Platform() types.Platform
	Check(ctx context.Context, e *entity.TrackedEntity) (Status, error)
}

var (
	mu       sync.RWMutex
	checkers = make(map[types.Platform]Checker)
)

// Register installs a checker. Platform packages call this from init().
func Register(c Checker) {
	mu.Lock()
	defer mu.Unlock()
	checkers[c.Platform()] = c
}

// Get looks up the checker for a platform, case-insensitively.
func Get(p types.Platform) (Checker, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := checkers[types.ParsePlatform(string(p))]
	return c, ok
}

// Platforms returns every platform with a registered checker.
func Platforms() []types.Platform {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]types.Platform, 0, len(checkers))
	for p := range checkers {
		out = append(out, p)
	}
	return out
}
