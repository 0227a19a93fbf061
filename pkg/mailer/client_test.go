package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_, _ = w.Write([]byte(`{"id":"msg-123"}`))
	}))
	defer srv.Close()

	c := NewClient("re_key", WithBaseURL(srv.URL))
	id, err := c.Send(context.Background(), Message{
		From:    "Sam at TradeReach <sam@tradereach.co.uk>",
		To:      "dave@smithroofing.co.uk",
		Subject: "Quick question",
		Text:    "Hi Dave",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-123", id)

	assert.Equal(t, "Bearer re_key", gotAuth)
	assert.Equal(t, "Sam at TradeReach <sam@tradereach.co.uk>", gotBody["from"])
	// The API wants recipients as an array even for a single address.
	assert.Equal(t, []any{"dave@smithroofing.co.uk"}, gotBody["to"])
	assert.Equal(t, "Quick question", gotBody["subject"])
	assert.Equal(t, "Hi Dave", gotBody["text"])
	assert.NotContains(t, gotBody, "html")
}

func TestSend_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), Message{To: "dave@smithroofing.co.uk"})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "invalid api key")
}

func TestSend_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Send(context.Background(), Message{To: "dave@smithroofing.co.uk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing message id")
}
