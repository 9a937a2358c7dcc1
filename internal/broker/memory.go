package broker

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the in-process Broker used in development and tests. Messages
// wait in a min-heap keyed by not_before; Read never returns a message
// whose delay has not elapsed. There is no crash-between-processes
// scenario to guard against here, so ClaimStale simply hands back every
// currently unacked message.
type Memory struct {
	mu      sync.Mutex
	ready   delayHeap
	unacked map[string]Message
	dead    []DeadMessage
	wake    chan struct{}
}

// DeadMessage is a dead-lettered payload retained for operator inspection.
type DeadMessage struct {
	Payload  Payload
	Reason   string
	FailedAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		unacked: make(map[string]Message),
		wake:    make(chan struct{}, 1),
	}
}

func (m *Memory) Publish(_ context.Context, p Payload, delay time.Duration) (string, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.NotBefore = now.Add(delay)

	msg := Message{ID: uuid.New().String(), Payload: p}

	m.mu.Lock()
	heap.Push(&m.ready, msg)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return msg.ID, nil
}

func (m *Memory) Read(ctx context.Context, count int, block time.Duration) ([]Message, error) {
	deadline := time.Now().Add(block)
	for {
		msgs := m.takeDue(count)
		if len(msgs) > 0 {
			return msgs, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		// Re-check either on a new publish or shortly before the nearest
		// not_before elapses.
		wait := remaining
		if next, ok := m.nextDue(); ok {
			if until := time.Until(next); until < wait {
				wait = until
			}
		}
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-m.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (m *Memory) takeDue(count int) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var msgs []Message
	for len(msgs) < count && m.ready.Len() > 0 {
		if m.ready[0].Payload.NotBefore.After(now) {
			break
		}
		msg := heap.Pop(&m.ready).(Message)
		m.unacked[msg.ID] = msg
		msgs = append(msgs, msg)
	}
	return msgs
}

func (m *Memory) nextDue() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready.Len() == 0 {
		return time.Time{}, false
	}
	return m.ready[0].Payload.NotBefore, true
}

func (m *Memory) Ack(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unacked, id)
	return nil
}

func (m *Memory) Requeue(ctx context.Context, msg Message, delay time.Duration) (string, error) {
	p := msg.Payload
	p.Attempt++
	id, err := m.Publish(ctx, p, delay)
	if err != nil {
		return "", err
	}
	return id, m.Ack(ctx, msg.ID)
}

func (m *Memory) DeadLetter(ctx context.Context, msg Message, reason string) error {
	m.mu.Lock()
	m.dead = append(m.dead, DeadMessage{
		Payload:  msg.Payload,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	m.mu.Unlock()
	return m.Ack(ctx, msg.ID)
}

func (m *Memory) ClaimStale(_ context.Context, _ time.Duration, count int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []Message
	for _, msg := range m.unacked {
		if len(msgs) >= count {
			break
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// DeadLetters returns a snapshot of the dead-letter channel.
func (m *Memory) DeadLetters() []DeadMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeadMessage, len(m.dead))
	copy(out, m.dead)
	return out
}

func (m *Memory) DeadLetterDepth(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.dead)), nil
}

// Depths reports ready and unacked counts for the pipeline snapshot.
func (m *Memory) Depths() (ready, unacked, dead int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready.Len(), len(m.unacked), len(m.dead)
}

var _ Broker = (*Memory)(nil)

// delayHeap orders messages by not_before, earliest first.
type delayHeap []Message

func (h delayHeap) Len() int { return len(h) }
func (h delayHeap) Less(i, j int) bool {
	return h[i].Payload.NotBefore.Before(h[j].Payload.NotBefore)
}
func (h delayHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x any) { *h = append(*h, x.(Message)) }
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	msg := old[n-1]
	*h = old[:n-1]
	return msg
}
