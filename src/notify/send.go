// Package notify turns detected transitions into outbound messages.
package notify

import (
	"fmt"
	"strings"

	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/detector"
	"github.com/streamalert-go/streamalert-go/src/log"
	"github.com/streamalert-go/streamalert-go/src/notify/email"
	"github.com/streamalert-go/streamalert-go/src/notify/telegram"
	"github.com/streamalert-go/streamalert-go/src/scheduler"
)

// BuildMessage renders the human-readable alert text for a transition.
func BuildMessage(alert *scheduler.Alert) string {
	e := alert.Entity
	snap := alert.Status.Snapshot

	var b strings.Builder
	switch alert.Transition {
	case detector.WentLive:
		fmt.Fprintf(&b, "%s is now live on %s!", e.Name, e.Platform)
		if snap.Title != "" {
			fmt.Fprintf(&b, "\n%s", snap.Title)
		}
		if snap.Category != "" {
			fmt.Fprintf(&b, "\nCategory: %s", snap.Category)
		}
	case detector.Changed:
		fmt.Fprintf(&b, "%s is still live on %s", e.Name, e.Platform)
		if snap.Category != "" {
			fmt.Fprintf(&b, "\nNow playing: %s", snap.Category)
		}
		if snap.Title != "" {
			fmt.Fprintf(&b, "\n%s", snap.Title)
		}
	case detector.WentOffline:
		fmt.Fprintf(&b, "%s has gone offline on %s.", e.Name, e.Platform)
	}
	if snap.URL != "" {
		fmt.Fprintf(&b, "\n%s", snap.URL)
	}
	return b.String()
}

// SendNotification delivers one alert over every enabled channel.
// Channel failures are logged and do not affect each other.
func SendNotification(alert *scheduler.Alert) error {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	message := BuildMessage(alert)

	if cfg.Notify.Telegram.Enable {
		err := telegram.SendMessage(
			cfg.Notify.Telegram.BotToken,
			cfg.Notify.Telegram.ChatID,
			message,
			cfg.Notify.Telegram.WithNotification,
		)
		if err != nil {
			log.GetLogger().WithError(err).Error("failed to send telegram message")
		}
	}

	if cfg.Notify.Email.Enable {
		subject := fmt.Sprintf("%s - %s", alert.Entity.Name, alert.Entity.Platform)
		if err := email.SendEmail(subject, message); err != nil {
			log.GetLogger().WithError(err).Error("failed to send email")
		}
	}

	return nil
}
