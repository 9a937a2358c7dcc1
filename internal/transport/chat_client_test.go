package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/interview-notifier/internal/domain"
	"github.com/hireloop/interview-notifier/internal/transport"
)

func gateway(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestChatClient_Success(t *testing.T) {
	srv := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RecipientID string `json:"recipient_id"`
			Text        string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cand-1", req.RecipientID)
		assert.Equal(t, "hello", req.Text)

		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "m-42"})
	})

	c := transport.NewChatClient(srv.URL, time.Second)
	id, err := c.Send(context.Background(), "cand-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m-42", id)
}

func TestChatClient_RateLimitedCarriesRetryAfterHint(t *testing.T) {
	srv := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	c := transport.NewChatClient(srv.URL, time.Second)
	_, err := c.Send(context.Background(), "cand-1", "hello")
	require.Error(t, err)

	se := domain.ClassifySend(err)
	assert.Equal(t, domain.FailureTransient, se.Class)
	assert.Equal(t, 7*time.Second, se.RetryAfter)
	assert.True(t, se.Retryable())
}

func TestChatClient_ServerErrorIsTransient(t *testing.T) {
	srv := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := transport.NewChatClient(srv.URL, time.Second)
	_, err := c.Send(context.Background(), "cand-1", "hello")
	require.Error(t, err)
	assert.True(t, domain.ClassifySend(err).Retryable())
}

func TestChatClient_ClientErrorIsPermanent(t *testing.T) {
	srv := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	c := transport.NewChatClient(srv.URL, time.Second)
	_, err := c.Send(context.Background(), "cand-1", "hello")
	require.Error(t, err)

	se := domain.ClassifySend(err)
	assert.Equal(t, domain.FailurePermanent, se.Class)
	assert.False(t, se.Retryable())
}

func TestChatClient_UnreachableGatewayIsTransient(t *testing.T) {
	c := transport.NewChatClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.Send(context.Background(), "cand-1", "hello")
	require.Error(t, err)
	assert.True(t, domain.ClassifySend(err).Retryable())
}

// After enough consecutive failures the breaker opens and sheds requests
// before they reach the wire; those too surface as transient.
func TestChatClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	hits := 0
	srv := gateway(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := transport.NewChatClient(srv.URL, time.Second)
	for i := 0; i < 10; i++ {
		_, err := c.Send(context.Background(), "cand-1", "hello")
		require.Error(t, err)
		assert.True(t, domain.ClassifySend(err).Retryable())
	}

	assert.Less(t, hits, 10, "breaker should shed some requests")
}
