package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/userhub/apiserver/internal/crypto"
	"github.com/userhub/apiserver/internal/logger"
	"github.com/userhub/apiserver/internal/notify"
	"github.com/userhub/apiserver/internal/session"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

var phonePattern = regexp.MustCompile(`\d{10}`)

const (
	minEmailLength    = 5
	maxEmailLength    = 255
	minPasswordLength = 5
)

// AccountRepository defines persistence operations for accounts.
// All operations act on non-removed records only.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetVerifyToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	ConfirmEmailByToken(ctx context.Context, token string, now time.Time) (types.Account, error)
	ResetPasswordByToken(ctx context.Context, token, passwordHash string, now time.Time) (types.Account, error)
	List(ctx context.Context, limit, offset int) ([]types.Account, error)
}

// AuthResult is returned by SignUp and SignIn.
type AuthResult struct {
	Account types.AccountSummary `json:"account"`
	Token   string               `json:"token"`
}

// AccountService orchestrates the account credential lifecycle:
// signup, signin, password rotation, email verification, and
// password reset by token. It is stateless; the repository is the
// sole shared mutable resource.
type AccountService struct {
	repo     AccountRepository
	hasher   *crypto.PasswordHasher
	tokens   *crypto.TokenGenerator
	sessions *session.Issuer
	notifier notify.Notifier
	logger   *logger.Logger
}

func NewAccountService(
	repo AccountRepository,
	hasher *crypto.PasswordHasher,
	tokens *crypto.TokenGenerator,
	sessions *session.Issuer,
	notifier notify.Notifier,
	logger *logger.Logger,
) *AccountService {
	return &AccountService{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

// SignUp creates a new unverified account, mails a confirmation link, and
// signs the caller in. The welcome email is fire-and-forget: a dispatch
// failure is logged but does not undo the created account.
func (s *AccountService) SignUp(ctx context.Context, email, phone, password, clientContext string) (AuthResult, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return AuthResult{}, err
	}
	if err := validatePassword(password); err != nil {
		return AuthResult{}, err
	}
	if err := validatePhone(phone); err != nil {
		return AuthResult{}, err
	}

	// The partial unique index on active emails is the authority; this
	// lookup only gives a friendly answer for the common case.
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("failed to check email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to generate verification token: %w", err)
	}

	account, err := s.repo.Create(ctx, types.Account{
		Email:              email,
		Phone:              phone,
		PasswordHash:       passwordHash,
		Role:               types.RoleUser,
		EmailVerified:      false,
		VerifyToken:        token.Value,
		VerifyTokenExpires: &token.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.notifier.Send(ctx, notify.KindWelcome, account); err != nil {
		s.logger.Error("failed to send welcome email",
			"account_id", account.ID,
			"error", err.Error())
	}

	sessionToken, err := s.sessions.Issue(account.ID, clientContext)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.logger.Info("account created", "account_id", account.ID)
	return AuthResult{Account: account.Summary(), Token: sessionToken}, nil
}

// SignIn verifies credentials and issues a session token. A missing
// account and a wrong password produce the identical error.
func (s *AccountService) SignIn(ctx context.Context, email, password, clientContext string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return AuthResult{}, fmt.Errorf("%w: fill out email field", ErrValidation)
	}
	if password == "" {
		return AuthResult{}, fmt.Errorf("%w: fill out password field", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrForbidden
		}
		return AuthResult{}, fmt.Errorf("failed to look up account: %w", err)
	}

	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return AuthResult{}, ErrForbidden
	}

	sessionToken, err := s.sessions.Issue(account.ID, clientContext)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to issue session token: %w", err)
	}

	if err := s.notifier.Send(ctx, notify.KindSecurity, account); err != nil {
		s.logger.Error("failed to send security email",
			"account_id", account.ID,
			"error", err.Error())
	}

	return AuthResult{Account: account.Summary(), Token: sessionToken}, nil
}

// ChangePassword replaces the password of an authenticated account after
// re-verifying the current one. The caller identity comes from the auth
// middleware, never from the request body.
func (s *AccountService) ChangePassword(ctx context.Context, accountID uuid.UUID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return fmt.Errorf("%w: fill out current password field", ErrValidation)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	valid, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return fmt.Errorf("%w: incorrect current password", ErrForbidden)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, accountID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.notifier.Send(ctx, notify.KindPasswordChanged, account); err != nil {
		s.logger.Error("failed to send password-changed email",
			"account_id", account.ID,
			"error", err.Error())
	}
	return nil
}

// UpdateProfile persists the display name and phone number of an
// authenticated account.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, name, phone string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: fill out name field", ErrValidation)
	}
	if err := validatePhone(phone); err != nil {
		return err
	}

	if err := s.repo.UpdateProfile(ctx, accountID, name, phone); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// RequestEmailVerification issues a fresh verification token, overwriting
// any outstanding one, and mails the confirmation link. Only the latest
// token is ever redeemable.
func (s *AccountService) RequestEmailVerification(ctx context.Context, accountID uuid.UUID, resend bool) error {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := s.repo.SetVerifyToken(ctx, account.ID, token.Value, token.ExpiresAt); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	account.VerifyToken = token.Value
	account.VerifyTokenExpires = &token.ExpiresAt

	kind := notify.KindWelcome
	if resend {
		kind = notify.KindResend
	}
	if err := s.notifier.Send(ctx, kind, account); err != nil {
		s.logger.Error("failed to send confirmation email",
			"account_id", account.ID,
			"error", err.Error())
	}
	return nil
}

// RequestPasswordReset issues a reset token and mails the reset link.
// It reports success for unknown emails so the response never reveals
// whether an address is registered; no token is generated in that case.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: fill out email field", ErrValidation)
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up account: %w", err)
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	if err := s.repo.SetVerifyToken(ctx, account.ID, token.Value, token.ExpiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	account.VerifyToken = token.Value
	account.VerifyTokenExpires = &token.ExpiresAt

	// The reset link is the whole point of this operation, so unlike the
	// courtesy notifications a dispatch failure fails the request.
	if err := s.notifier.Send(ctx, notify.KindReset, account); err != nil {
		s.logger.Error("failed to send reset email",
			"account_id", account.ID,
			"error", err.Error())
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}
	return nil
}

// ConfirmEmail redeems an email-verification token. Redemption clears the
// token fields in the same store operation, so a token is single-use.
func (s *AccountService) ConfirmEmail(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: missing confirmation token", ErrInvalidToken)
	}

	if _, err := s.repo.ConfirmEmailByToken(ctx, token, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset redeems a reset token and installs the new password.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return fmt.Errorf("%w: missing reset token", ErrInvalidToken)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := s.repo.ResetPasswordByToken(ctx, token, passwordHash, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	if err := s.notifier.Send(ctx, notify.KindPasswordChanged, account); err != nil {
		s.logger.Error("failed to send password-changed email",
			"account_id", account.ID,
			"error", err.Error())
	}
	return nil
}

// GetByID returns the safe projection of an account.
func (s *AccountService) GetByID(ctx context.Context, accountID uuid.UUID) (types.AccountSummary, error) {
	account, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.AccountSummary{}, ErrAccountNotFound
		}
		return types.AccountSummary{}, fmt.Errorf("failed to look up account: %w", err)
	}
	return account.Summary(), nil
}

// List returns safe projections of non-removed accounts, newest first.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]types.AccountSummary, error) {
	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	summaries := make([]types.AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, account.Summary())
	}
	return summaries, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: fill out email field", ErrValidation)
	}
	if len(email) < minEmailLength || len(email) > maxEmailLength || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: please fill a valid email address", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: fill out password field", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password is shorter than the minimum allowed length (%d)", ErrValidation, minPasswordLength)
	}
	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("%w: phone number required", ErrValidation)
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("%w: %s is not a valid phone number", ErrValidation, phone)
	}
	return nil
}
