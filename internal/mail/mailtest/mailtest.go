// Package mailtest provides a recording Mailer for tests.
package mailtest

import (
	"context"
	"sync"

	"github.com/leapstack-labs/leapreport/internal/mail"
	"github.com/leapstack-labs/leapreport/pkg/core"
)

// Recorder keeps every message it is asked to send.
type Recorder struct {
	mu   sync.Mutex
	sent []mail.Message

	// Err, when set, fails every Send after recording the attempt.
	Err error
}

// Send records msg.
func (r *Recorder) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	if r.Err != nil {
		return &core.MailError{Subject: msg.Subject, Err: r.Err}
	}
	return nil
}

// Sent returns the recorded messages.
func (r *Recorder) Sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.sent...)
}

var _ mail.Mailer = (*Recorder)(nil)
