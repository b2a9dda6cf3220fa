package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/userhub/apiserver/internal/crypto"
	"github.com/userhub/apiserver/internal/logger"
	"github.com/userhub/apiserver/internal/notify"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/internal/session"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

type testServer struct {
	router   *chi.Mux
	repo     *store.MemoryAccountRepository
	sessions *session.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := store.NewMemoryAccountRepository()
	sessions := session.NewIssuer("test-secret", time.Hour)
	accounts := services.NewAccountService(
		repo,
		crypto.NewPasswordHasher(bcrypt.MinCost),
		crypto.NewTokenGenerator(24, time.Hour),
		sessions,
		notify.Noop{},
		logger.Discard(),
	)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AccountRouter(r, accounts, sessions)
	})
	router.Route("/accounts", func(r chi.Router) {
		AccountListRouter(r, accounts, RequireAuth(sessions))
	})

	return &testServer{router: router, repo: repo, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signUp(t *testing.T, email string) services.AuthResult {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/auth/signup", "", SignUpRequest{
		Email:    email,
		Phone:    "1234567890",
		Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result services.AuthResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSignUpEndpoint(t *testing.T) {
	s := newTestServer(t)

	result := s.signUp(t, "a@b.com")
	assert.Equal(t, "a@b.com", result.Account.Email)
	assert.NotEmpty(t, result.Token)

	sess, err := s.sessions.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Account.ID, sess.AccountID)
}

func TestSignUpEndpoint_Duplicate(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "a@b.com")

	rec := s.do(t, http.MethodPost, "/auth/signup", "", SignUpRequest{
		Email:    "a@b.com",
		Phone:    "1234567890",
		Password: "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignUpEndpoint_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/signup", "", SignUpRequest{
		Email:    "a@b.com",
		Phone:    "1234567890",
		Password: "1234",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignUpEndpoint_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignInEndpoint(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")

	rec := s.do(t, http.MethodPost, "/auth/signin", "", SignInRequest{
		Email:    "a@b.com",
		Password: "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.AuthResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, created.Account.ID, result.Account.ID)
}

func TestSignInEndpoint_BadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "a@b.com")

	for name, req := range map[string]SignInRequest{
		"wrong password": {Email: "a@b.com", Password: "wrong-pass"},
		"unknown email":  {Email: "ghost@b.com", Password: "secret123"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/auth/signin", "", req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())
		})
	}
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")

	rec := s.do(t, http.MethodGet, "/auth/me", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary types.AccountSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, created.Account.ID, summary.ID)
	assert.Equal(t, "a@b.com", summary.Email)
}

func TestMe_Unauthorized(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "a@b.com")

	cases := map[string]string{
		"no token":      "",
		"garbage token": "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/auth/me", token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")

	rec := s.do(t, http.MethodPut, "/auth/me/password", created.Token, ChangePasswordRequest{
		CurrentPassword: "secret123",
		Password:        "rotated1",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "a@b.com", Password: "rotated1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePasswordEndpoint_WrongCurrent(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")

	rec := s.do(t, http.MethodPut, "/auth/me/password", created.Token, ChangePasswordRequest{
		CurrentPassword: "wrong",
		Password:        "rotated1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfileEndpoint(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")

	rec := s.do(t, http.MethodPut, "/auth/me/profile", created.Token, UpdateProfileRequest{
		Name:  "Alice",
		Phone: "0987654321",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/auth/me", created.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary types.AccountSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, "Alice", summary.Name)
	assert.Equal(t, "0987654321", summary.Phone)
}

func TestConfirmEmailEndpoint(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")
	ctx := context.Background()

	stored, err := s.repo.GetByID(ctx, created.Account.ID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/auth/confirm/"+stored.VerifyToken, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Token is single-use.
	rec = s.do(t, http.MethodPost, "/auth/confirm/"+stored.VerifyToken, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	confirmed, err := s.repo.GetByID(ctx, created.Account.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailVerified)
}

func TestResendConfirmationEndpoint(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")
	ctx := context.Background()

	before, err := s.repo.GetByID(ctx, created.Account.ID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/auth/me/verification", created.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	after, err := s.repo.GetByID(ctx, created.Account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.VerifyToken, after.VerifyToken)
}

func TestPasswordResetEndpoints(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "a@b.com")
	ctx := context.Background()

	rec := s.do(t, http.MethodPost, "/auth/reset", "", ResetRequest{Email: "a@b.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := s.repo.GetByID(ctx, created.Account.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.VerifyToken)

	rec = s.do(t, http.MethodPost, "/auth/reset/"+stored.VerifyToken, "", ConfirmResetRequest{Password: "newpass1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/reset/"+stored.VerifyToken, "", ConfirmResetRequest{Password: "newpass2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/signin", "", SignInRequest{Email: "a@b.com", Password: "newpass1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordResetEndpoint_UnknownEmail(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/reset", "", ResetRequest{Email: "ghost@b.com"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAccountList_RequiresManager(t *testing.T) {
	s := newTestServer(t)
	created := s.signUp(t, "user@b.com")

	rec := s.do(t, http.MethodGet, "/accounts/", created.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/accounts/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountList_AsManager(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "user@b.com")

	manager, err := s.repo.Create(context.Background(), types.Account{
		Email:        "boss@b.com",
		Role:         types.RoleManager,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	token, err := s.sessions.Issue(manager.ID, "test")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/accounts/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AccountListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, defaultPage, resp.Page)
	assert.Equal(t, defaultLimit, resp.Limit)
}

func TestAccountList_Pagination(t *testing.T) {
	s := newTestServer(t)

	manager, err := s.repo.Create(context.Background(), types.Account{
		Email:        "boss@b.com",
		Role:         types.RoleManager,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	token, err := s.sessions.Issue(manager.ID, "test")
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/accounts/?page=1&limit=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AccountListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 1, resp.Limit)

	rec = s.do(t, http.MethodGet, "/accounts/?page=zero", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
