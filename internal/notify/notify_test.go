package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userhub/apiserver/config"
	"github.com/userhub/apiserver/internal/mq"
	"github.com/userhub/apiserver/types"
)

type fakeBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (b *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *fakeBackend) Subscribe(context.Context, string, mq.Handler) error { return nil }
func (b *fakeBackend) Close() error                                       { return nil }

func testAccount() types.Account {
	return types.Account{
		Email:       "a@b.com",
		VerifyToken: "deadbeef",
	}
}

func TestBuildEmail_ConfirmationLink(t *testing.T) {
	for _, kind := range []Kind{KindWelcome, KindResend} {
		t.Run(string(kind), func(t *testing.T) {
			email, err := BuildEmail(kind, testAccount(), "https://app.example.com", "UserHub", "UserHub Inc")
			require.NoError(t, err)

			assert.Equal(t, "a@b.com", email.To)
			assert.Equal(t, kind, email.Kind)
			assert.Equal(t, "https://app.example.com/confirm/deadbeef/", email.TemplateModel["action_url"])
			assert.Equal(t, "https://app.example.com/signin/", email.TemplateModel["login_url"])
			assert.Equal(t, "UserHub", email.TemplateModel["product_name"])
		})
	}
}

func TestBuildEmail_ResetLink(t *testing.T) {
	email, err := BuildEmail(KindReset, testAccount(), "https://app.example.com", "UserHub", "UserHub Inc")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/reset/deadbeef/", email.TemplateModel["action_url"])
}

func TestBuildEmail_NoActionLinkForCourtesyKinds(t *testing.T) {
	for _, kind := range []Kind{KindPasswordChanged, KindSecurity} {
		email, err := BuildEmail(kind, testAccount(), "https://app.example.com", "UserHub", "UserHub Inc")
		require.NoError(t, err)
		assert.NotContains(t, email.TemplateModel, "action_url")
	}
}

func TestBuildEmail_UnknownKind(t *testing.T) {
	_, err := BuildEmail(Kind("launch-party"), testAccount(), "https://app.example.com", "UserHub", "UserHub Inc")
	require.Error(t, err)
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindWelcome.Valid())
	assert.True(t, KindSecurity.Valid())
	assert.False(t, Kind("").Valid())
	assert.False(t, Kind("launch-party").Valid())
}

func TestQueueNotifier_PublishesEmailJob(t *testing.T) {
	backend := &fakeBackend{}
	notifier := NewQueueNotifier(mq.New(backend), config.NotifierConfig{
		Channel: "emails",
		AppHost: "https://app.example.com",
		Product: "UserHub",
		Company: "UserHub Inc",
	})

	err := notifier.Send(context.Background(), KindWelcome, testAccount())
	require.NoError(t, err)

	assert.Equal(t, "emails", backend.channel)
	assert.Equal(t, map[string]string{"kind": "welcome"}, backend.attrs)

	var email Email
	require.NoError(t, json.Unmarshal(backend.data, &email))
	assert.Equal(t, "a@b.com", email.To)
	assert.Equal(t, KindWelcome, email.Kind)
	assert.Contains(t, email.TemplateModel["action_url"], "deadbeef")
}

func TestQueueNotifier_PublishFailure(t *testing.T) {
	backend := &fakeBackend{err: errors.New("broker down")}
	notifier := NewQueueNotifier(mq.New(backend), config.NotifierConfig{Channel: "emails"})

	err := notifier.Send(context.Background(), KindWelcome, testAccount())
	require.Error(t, err)
}

func TestQueueNotifier_RejectsUnknownKind(t *testing.T) {
	backend := &fakeBackend{}
	notifier := NewQueueNotifier(mq.New(backend), config.NotifierConfig{Channel: "emails"})

	err := notifier.Send(context.Background(), Kind("launch-party"), testAccount())
	require.Error(t, err)
	assert.Empty(t, backend.channel)
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.Send(context.Background(), KindWelcome, testAccount()))
}
