package push

import (
	"fmt"
	"sync"
)

// MockChannel records sent messages, used in tests.
type MockChannel struct {
	mu     sync.Mutex
	sent   []Message
	Fail   bool
	Closed bool
}

// NewMockChannel creates an empty MockChannel.
func NewMockChannel() *MockChannel { return &MockChannel{} }

// Send records the message or fails when configured to.
func (m *MockChannel) Send(msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail || m.Closed {
		return fmt.Errorf("send failed")
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Close marks the channel closed.
func (m *MockChannel) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *MockChannel) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
