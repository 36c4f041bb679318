// Package sentry wraps the Sentry SDK so that background goroutines
// never take the process down with an unhandled panic. When no DSN is
// configured the wrappers degrade to plain recover + log.
package sentry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

var (
	initialized bool
	initMu      sync.RWMutex
)

// Init initializes the Sentry SDK. An empty dsn disables reporting.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		SampleRate:       1.0,
	}); err != nil {
		return err
	}
	initMu.Lock()
	initialized = true
	initMu.Unlock()
	return nil
}

func IsInitialized() bool {
	initMu.RLock()
	defer initMu.RUnlock()
	return initialized
}

// Flush sends pending events; call before process exit.
func Flush(timeout time.Duration) {
	if !IsInitialized() {
		return
	}
	sentry.Flush(timeout)
}

// Recover is meant to be deferred at the top of a goroutine. recover()
// must run before the init check or the panic escapes anyway.
func Recover() {
	err := recover()
	if err == nil {
		return
	}
	if IsInitialized() {
		if hub := sentry.CurrentHub(); hub != nil {
			hub.Recover(err)
		}
	}
	logrus.WithField("panic", err).Error("recovered panic in background goroutine")
}

// Go runs fn in a new goroutine with panic capture.
func Go(fn func()) {
	go func() {
		defer Recover()
		fn()
	}()
}

// GoWithContext runs fn in a new goroutine with panic capture and the
// given context.
func GoWithContext(ctx context.Context, fn func(ctx context.Context)) {
	go func() {
		defer Recover()
		fn(ctx)
	}()
}
