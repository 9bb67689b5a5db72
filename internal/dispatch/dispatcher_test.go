package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"household-notify-go/internal/models"
	"household-notify-go/internal/push"
	"household-notify-go/internal/store"
)

// subscribeUser runs the real manager flow against the sandbox platform
// so the stored subscription carries webpush-compatible key material.
func subscribeUser(t *testing.T, mem *store.MemoryStore, userID int, pushServiceURL string) {
	t.Helper()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	require.NoError(t, mem.SaveVapidKeys(context.Background(), publicKey, privateKey))

	m := push.NewManager(push.NewSandboxPlatform(pushServiceURL), mem, mem, userID, zaptest.NewLogger(t))
	require.NotNil(t, m.Create(context.Background()))
}

func TestDispatchPush(t *testing.T) {
	var got []*http.Request
	pushService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		got = append(got, r)
		w.WriteHeader(http.StatusCreated)
	}))
	defer pushService.Close()

	mem := store.NewMemoryStore()
	subscribeUser(t, mem, 7, pushService.URL)

	d := NewDispatcher(mem, mem, nil, MailerConfig{}, zaptest.NewLogger(t))
	d.Dispatch(context.Background(), models.DispatchRequest{
		Channel:    models.ChannelPush,
		Recipients: []int{7},
		Title:      "Chores done",
		Body:       "All chores for today are complete.",
	})

	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].Header.Get("Authorization"))
	assert.Equal(t, "aes128gcm", got[0].Header.Get("Content-Encoding"))

	// Delivered: the subscription row stays.
	assert.True(t, mem.HasSubscription(context.Background(), 7))
}

func TestDispatchPushPrunesGoneEndpoint(t *testing.T) {
	pushService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusGone)
	}))
	defer pushService.Close()

	mem := store.NewMemoryStore()
	subscribeUser(t, mem, 7, pushService.URL)

	d := NewDispatcher(mem, mem, nil, MailerConfig{}, zaptest.NewLogger(t))
	d.Dispatch(context.Background(), models.DispatchRequest{
		Channel:    models.ChannelPush,
		Recipients: []int{7},
		Title:      "Bill due",
		Body:       "The water bill is due tomorrow.",
	})

	assert.False(t, mem.HasSubscription(context.Background(), 7))
}

func TestDispatchEmail(t *testing.T) {
	type mail struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	var got []mail
	var auth []string
	mailer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m mail
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got = append(got, m)
		auth = append(auth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer mailer.Close()

	mem := store.NewMemoryStore()
	d := NewDispatcher(mem, mem, nil, MailerConfig{URL: mailer.URL, Token: "mailer-token"}, zaptest.NewLogger(t))
	d.Dispatch(context.Background(), models.DispatchRequest{
		Channel: models.ChannelEmail,
		Emails:  []string{"a@x.com", "b@x.com"},
		Title:   "Weekly summary",
		Body:    "Points earned this week: 42.",
	})

	require.Len(t, got, 2)
	assert.Equal(t, "a@x.com", got[0].To)
	assert.Equal(t, "Weekly summary", got[0].Subject)
	assert.Equal(t, "Bearer mailer-token", auth[0])
	assert.Equal(t, "b@x.com", got[1].To)
}
