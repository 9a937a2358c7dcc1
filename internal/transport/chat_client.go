package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hireloop/interview-notifier/internal/domain"
)

// ChatClient delivers messages by POSTing to the chat gateway. An outer
// gobreaker wrapper sheds load when the gateway is consistently failing;
// the worker's own cool-down gate handles per-attempt pacing on top.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

type sendRequest struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

func NewChatClient(baseURL string, timeout time.Duration) *ChatClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "chat-gateway",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ChatClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
	}
}

// Send posts the message and maps the gateway's responses onto the send
// failure taxonomy: 429 is transient with the Retry-After hint attached,
// 5xx and network errors are transient, any other non-2xx is permanent.
func (c *ChatClient) Send(ctx context.Context, recipientID, text string) (string, error) {
	body, err := json.Marshal(sendRequest{RecipientID: recipientID, Text: text})
	if err != nil {
		return "", domain.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		// Breaker-open and network errors alike: the gateway is
		// unreachable, not rejecting this message.
		return "", domain.Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", domain.RateLimited(
			fmt.Errorf("gateway rate limited"), retryAfter(resp))
	case resp.StatusCode >= 500:
		return "", domain.Transient(fmt.Errorf("gateway status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return "", domain.Permanent(fmt.Errorf("gateway status %d", resp.StatusCode))
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", domain.Transient(fmt.Errorf("decode response: %w", err))
	}
	return sr.MessageID, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

var _ Sender = (*ChatClient)(nil)
