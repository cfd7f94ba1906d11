package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/facegate/server/internal/facegate/types"
)

// EmailConfig are the recognized options for the email channel.
type EmailConfig struct {
	Enabled    bool
	SMTPAddr   string // host:port
	From       string
	Recipients []string
}

// EmailChannel sends alerts as plain-text mail over SMTP.
type EmailChannel struct {
	cfg EmailConfig

	// sendMail is swappable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg: cfg,
		sendMail: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, a types.Alert) error {
	if len(c.cfg.Recipients) == 0 {
		return fmt.Errorf("email channel: no recipients configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.cfg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: Facegate alert: %s\r\n", strings.ToUpper(string(a.Severity)))
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s: %s\r\n", a.Type, a.Message)
	if a.UserName != "" {
		fmt.Fprintf(&b, "User: %s\r\n", a.UserName)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\r\n", a.Reason)
	}
	fmt.Fprintf(&b, "At: %s\r\n", a.Timestamp.Format("2006-01-02 15:04:05 MST"))

	if err := c.sendMail(c.cfg.SMTPAddr, c.cfg.From, c.cfg.Recipients, []byte(b.String())); err != nil {
		return fmt.Errorf("email channel: %w", err)
	}
	return nil
}
