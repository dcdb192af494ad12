package notify

import (
	"context"
	"sync"
)

// NopSender implements EmailSender without performing any action. Used when
// no mail transport is configured.
type NopSender struct{}

// Send implements EmailSender.
func (NopSender) Send(context.Context, string, string, string) error { return nil }

// Email is a single message captured by MemorySender.
type Email struct {
	To      string
	Subject string
	Body    string
}

// MemorySender records messages in memory. Test double.
type MemorySender struct {
	mu     sync.Mutex
	outbox []Email
	err    error
}

// NewMemorySender creates a MemorySender that returns err from Send when err
// is non-nil.
func NewMemorySender(err error) *MemorySender {
	return &MemorySender{err: err}
}

// Send records the message.
func (m *MemorySender) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.outbox = append(m.outbox, Email{To: to, Subject: subject, Body: body})
	return nil
}

// Outbox returns a copy of the captured messages.
func (m *MemorySender) Outbox() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.outbox))
	copy(out, m.outbox)
	return out
}
