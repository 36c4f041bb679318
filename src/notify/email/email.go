// Package email delivers alerts over SMTP.
package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/streamalert-go/streamalert-go/src/configs"
)

// SendEmail sends one plain-text message using the configured SMTP
// account.
func SendEmail(subject, body string) error {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}
	ec := cfg.Notify.Email
	if ec.SMTPHost == "" || ec.SenderEmail == "" || ec.RecipientEmail == "" {
		return fmt.Errorf("smtp host, sender and recipient must be configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", ec.SenderEmail)
	m.SetHeader("To", ec.RecipientEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(ec.SMTPHost, ec.SMTPPort, ec.SenderEmail, ec.SenderPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
