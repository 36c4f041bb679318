// Package telegram delivers alerts through the Telegram bot API.
package telegram

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hr3lxphr6j/requests"
	"github.com/tidwall/gjson"
)

const apiBase = "https://api.telegram.org"

var session = requests.NewSession(&http.Client{Timeout: 15 * time.Second})

// SendMessage posts text to a chat. withNotification controls whether
// the client plays a sound on delivery.
func SendMessage(botToken, chatID, message string, withNotification bool) error {
	if botToken == "" || chatID == "" {
		return fmt.Errorf("telegram bot token and chat id must be configured")
	}

	disableNotification := "true"
	if withNotification {
		disableNotification = "false"
	}

	resp, err := session.Get(
		fmt.Sprintf("%s/bot%s/sendMessage", apiBase, botToken),
		requests.Query("chat_id", chatID),
		requests.Query("text", message),
		requests.Query("disable_notification", disableNotification),
	)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}

	body, err := resp.Bytes()
	if err != nil {
		return fmt.Errorf("failed to read telegram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(body, "ok").Bool() {
		return fmt.Errorf("telegram API error: %s", gjson.GetBytes(body, "description").String())
	}
	return nil
}
