package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/userhub/apiserver/types"
)

// Unique violation on the partial index covering active emails.
const pqUniqueViolation = "23505"

const accountColumns = `id, email, email_verified, name, role, password_hash, phone,
		verify_token, verify_token_expires, removed, created_at, updated_at`

// AccountRepository handles persistence for accounts. All reads and
// mutations operate on non-removed records only.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND NOT removed`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1 AND NOT removed`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	const query = `
		INSERT INTO accounts (id, email, email_verified, name, role, password_hash, phone,
			verify_token, verify_token_expires, removed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Email,
		account.EmailVerified,
		account.Name,
		account.Role,
		account.PasswordHash,
		account.Phone,
		nullString(account.VerifyToken),
		nullTime(account.VerifyTokenExpires),
		account.Removed,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.Account{}, ErrDuplicateEmail
		}
		return types.Account{}, err
	}
	return account, nil
}

// UpdateProfile persists the display name and phone number.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) error {
	const query = `
		UPDATE accounts
		SET name = $1, phone = $2, updated_at = $3
		WHERE id = $4 AND NOT removed`
	return r.exec(ctx, query, name, phone, time.Now(), id)
}

// UpdatePassword replaces the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const query = `
		UPDATE accounts
		SET password_hash = $1, updated_at = $2
		WHERE id = $3 AND NOT removed`
	return r.exec(ctx, query, passwordHash, time.Now(), id)
}

// SetVerifyToken installs a fresh verification token, overwriting any
// outstanding one so only the latest token is ever redeemable.
func (r *AccountRepository) SetVerifyToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	const query = `
		UPDATE accounts
		SET verify_token = $1, verify_token_expires = $2, updated_at = $3
		WHERE id = $4 AND NOT removed`
	return r.exec(ctx, query, token, expires, time.Now(), id)
}

// ConfirmEmailByToken atomically redeems an email-verification token:
// the conditional update matches only an unexpired token and clears the
// token fields in the same statement, making redemption single-use.
func (r *AccountRepository) ConfirmEmailByToken(ctx context.Context, token string, now time.Time) (types.Account, error) {
	const query = `
		UPDATE accounts
		SET email_verified = TRUE, verify_token = NULL, verify_token_expires = NULL, updated_at = $1
		WHERE verify_token = $2 AND verify_token_expires > $1 AND NOT removed
		RETURNING ` + accountColumns
	return r.scanOne(r.db.QueryRowContext(ctx, query, now, token))
}

// ResetPasswordByToken atomically redeems a password-reset token,
// replacing the password hash and clearing the token fields.
func (r *AccountRepository) ResetPasswordByToken(ctx context.Context, token, passwordHash string, now time.Time) (types.Account, error) {
	const query = `
		UPDATE accounts
		SET password_hash = $1, verify_token = NULL, verify_token_expires = NULL, updated_at = $2
		WHERE verify_token = $3 AND verify_token_expires > $2 AND NOT removed
		RETURNING ` + accountColumns
	return r.scanOne(r.db.QueryRowContext(ctx, query, passwordHash, now, token))
}

// List returns non-removed accounts, newest first.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE NOT removed
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []types.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepository) scanOne(row rowScanner) (types.Account, error) {
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func scanAccount(row rowScanner) (types.Account, error) {
	var account types.Account
	var verifyToken sql.NullString
	var verifyTokenExpires sql.NullTime
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.EmailVerified,
		&account.Name,
		&account.Role,
		&account.PasswordHash,
		&account.Phone,
		&verifyToken,
		&verifyTokenExpires,
		&account.Removed,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return types.Account{}, err
	}
	account.VerifyToken = verifyToken.String
	if verifyTokenExpires.Valid {
		expires := verifyTokenExpires.Time
		account.VerifyTokenExpires = &expires
	}
	return account, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
