package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/userhub/apiserver/config"
)

var subjects = map[Kind]string{
	KindWelcome:         "Confirm your email address",
	KindResend:          "Confirm your email address",
	KindReset:           "Reset your password",
	KindPasswordChanged: "Your password was changed",
	KindSecurity:        "New sign-in to your account",
}

// SMTPSender delivers queued email jobs over SMTP. It runs in the
// delivery worker, never in the request path.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Deliver renders and sends a single email job.
func (s *SMTPSender) Deliver(email Email) error {
	subject, ok := subjects[email.Kind]
	if !ok {
		return fmt.Errorf("unknown notification kind %q", email.Kind)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hello,\r\n\r\n")
	switch email.Kind {
	case KindWelcome, KindResend:
		fmt.Fprintf(&body, "Please confirm your email address:\r\n%s\r\n", email.TemplateModel["action_url"])
	case KindReset:
		fmt.Fprintf(&body, "To reset your password, follow the link below. The link expires in 24 hours.\r\n%s\r\n", email.TemplateModel["action_url"])
	case KindPasswordChanged:
		fmt.Fprintf(&body, "The password for your account was just changed. If this was not you, reset your password immediately.\r\n")
	case KindSecurity:
		fmt.Fprintf(&body, "A new sign-in to your account was detected. If this was not you, change your password.\r\n")
	}
	fmt.Fprintf(&body, "\r\n%s\r\n", email.TemplateModel["product_name"])

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", email.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body.String())

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{email.To}, []byte(msg.String()))
}
