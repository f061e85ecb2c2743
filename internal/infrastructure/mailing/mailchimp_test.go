package mailing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avwx/portal/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(serverURL string) *MailchimpClient {
	return &MailchimpClient{
		apiKey:     "test-key-us21",
		listID:     "list123",
		baseURL:    serverURL,
		httpClient: &http.Client{Timeout: time.Second},
		logger:     zap.NewNop(),
	}
}

func TestNewMailchimpClient(t *testing.T) {
	t.Run("parses datacenter from key suffix", func(t *testing.T) {
		client, err := NewMailchimpClient(config.MailingConfig{
			APIKey: "abc123-us21",
			ListID: "list123",
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "https://us21.api.mailchimp.com/3.0", client.baseURL)
	})

	t.Run("rejects key without datacenter", func(t *testing.T) {
		_, err := NewMailchimpClient(config.MailingConfig{APIKey: "abc123"}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestMailchimpClient_Subscribe(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path

		_, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "test-key-us21", password)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Subscribe(context.Background(), "Pilot@Example.com")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	// MD5 of the lowercased address keys the member resource
	assert.Equal(t, "/lists/list123/members/7556cf45fbbb597e4dad9a0574518563", gotPath)
}

func TestMailchimpClient_Subscribe_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Subscribe(context.Background(), "pilot@example.com")

	assert.Error(t, err)
}

func TestMailchimpClient_Unsubscribe(t *testing.T) {
	t.Run("archives the member", func(t *testing.T) {
		var gotMethod string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		err := client.Unsubscribe(context.Background(), "pilot@example.com")

		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, gotMethod)
	})

	t.Run("unknown member is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		err := client.Unsubscribe(context.Background(), "pilot@example.com")

		assert.NoError(t, err)
	})
}
