/*
Package mail is the outbound email boundary.

PURPOSE:
  The billing engine composes reminder subjects and bodies; this
  package owns the hand-off to whatever actually delivers them. SMTP,
  a queue, or a provider API all sit behind the Mailer interface -
  delivery, retries, and bounce handling are that collaborator's
  problem, never the engine's.

IMPLEMENTATIONS:
  LogMailer:  Writes messages to the process log (dev/default)
  Recorder:   Captures messages in memory (tests)

SEE ALSO:
  - api/scheduler.go: The reminder scheduler driving this boundary
*/
package mail

import (
	"context"
	"log"
	"sync"
)

// Message is one outbound email, fully composed.
type Message struct {
	To      string
	Cc      []string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must be safe for concurrent
// use; the scheduler may send from its own goroutine while handlers send
// from request goroutines.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// LOG MAILER - Default implementation, logs instead of delivering
// =============================================================================

// LogMailer logs every message. Used in development and as the default
// when no real delivery backend is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("[Mail] to=%s cc=%v subject=%q", msg.To, msg.Cc, msg.Subject)
	return nil
}

// =============================================================================
// RECORDER - Test double
// =============================================================================

// Recorder captures sent messages for assertions in tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
