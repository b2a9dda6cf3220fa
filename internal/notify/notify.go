package notify

import (
	"context"
	"fmt"

	"github.com/userhub/apiserver/types"
)

// Kind selects the email template for a notification.
type Kind string

const (
	// KindWelcome is the confirmation email sent after signup.
	KindWelcome Kind = "welcome"
	// KindResend is the re-sent confirmation email.
	KindResend Kind = "resend"
	// KindReset is the password-reset email carrying the reset link.
	KindReset Kind = "reset"
	// KindPasswordChanged notifies that the password was changed.
	KindPasswordChanged Kind = "password-changed"
	// KindSecurity notifies about a successful signin.
	KindSecurity Kind = "security"
)

// Valid reports whether the kind maps to a known template.
func (k Kind) Valid() bool {
	switch k {
	case KindWelcome, KindResend, KindReset, KindPasswordChanged, KindSecurity:
		return true
	}
	return false
}

// Notifier dispatches templated emails for account lifecycle events.
// Implementations must never undo a committed state change on failure;
// callers treat delivery as fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, kind Kind, account types.Account) error
}

// Noop discards all notifications. Used when no broker is configured
// and in tests.
type Noop struct{}

func (Noop) Send(context.Context, Kind, types.Account) error { return nil }

// Email is the templated delivery job handed to the transport.
type Email struct {
	To            string            `json:"to"`
	Kind          Kind              `json:"kind"`
	TemplateModel map[string]string `json:"template_model"`
}

// BuildEmail assembles the delivery job for a notification kind,
// including the action link redeeming the account's current token.
func BuildEmail(kind Kind, account types.Account, appHost, product, company string) (Email, error) {
	if !kind.Valid() {
		return Email{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	model := map[string]string{
		"product_name":  product,
		"company_name":  company,
		"support_email": account.Email,
	}
	switch kind {
	case KindWelcome, KindResend:
		model["username"] = account.Email
		model["action_url"] = fmt.Sprintf("%s/confirm/%s/", appHost, account.VerifyToken)
		model["login_url"] = fmt.Sprintf("%s/signin/", appHost)
	case KindReset:
		model["action_url"] = fmt.Sprintf("%s/reset/%s/", appHost, account.VerifyToken)
	}

	return Email{
		To:            account.Email,
		Kind:          kind,
		TemplateModel: model,
	}, nil
}
