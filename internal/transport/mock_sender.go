package transport

import (
	"context"
	"sync"
)

// MockSender records sends and returns scripted results; used in worker
// and service tests.
type MockSender struct {
	mu    sync.Mutex
	calls []SendCall

	// NextErr, if set, is returned (and cleared) on the next Send.
	NextErr error
	// Err, if set, is returned on every Send.
	Err error
	// MessageID returned on success; defaults to "msg-1".
	MessageID string
	// OnSend, if set, runs at the start of every Send, outside the lock.
	// Tests use it to hold a send open while another path races it.
	OnSend func()
}

type SendCall struct {
	RecipientID string
	Text        string
}

func NewMockSender() *MockSender {
	return &MockSender{MessageID: "msg-1"}
}

func (m *MockSender) Send(_ context.Context, recipientID, text string) (string, error) {
	if m.OnSend != nil {
		m.OnSend()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SendCall{RecipientID: recipientID, Text: text})
	if m.NextErr != nil {
		err := m.NextErr
		m.NextErr = nil
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.MessageID, nil
}

func (m *MockSender) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}
