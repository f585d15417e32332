/*
Package events publishes committed ledger changes.

PURPOSE:
  After every committed write set the inventory service hands its changes to
  a Notifier. This package provides the NATS-backed notifier used in
  production, an in-process recorder for tests and local runs, and a fanout
  that combines them.

SUBJECTS:
  <prefix>.<collection>, one message per changed record:
    spirits.containers
    spirits.products
    spirits.productionBatches
    spirits.transactionLog

PAYLOAD:
  {"collection": "...", "op": "upsert"|"delete", "id": "...", "data": {...}, "at": "..."}

SEE ALSO:
  - inventory/service.go: Change, Notifier
  - cmd/ledgerctl: "watch" subscribes to these subjects
*/
package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/warp/spirits-ledger/inventory"
)

// DefaultPrefix is the subject prefix when none is configured.
const DefaultPrefix = "spirits"

// Event is the wire form of one change.
type Event struct {
	inventory.Change
	At time.Time `json:"at"`
}

// Subject returns the subject a change to collection is published on.
func Subject(prefix, collection string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + collection
}

// =============================================================================
// BUS - NATS connection
// =============================================================================

// Publisher sends raw payloads to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Bus wraps a NATS connection for publishing and consuming events.
type Bus struct {
	conn *nats.Conn
}

// Connect creates a Bus connected to the provided NATS endpoint.
func Connect(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: nc}, nil
}

// Close drains and shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.conn.Publish(subject, data)
}

// Subscribe invokes fn for each event on subject until ctx is done.
// Wildcards are allowed, e.g. "spirits.>".
func (b *Bus) Subscribe(ctx context.Context, subject string, fn func(Event)) error {
	if b == nil {
		return errors.New("nil bus")
	}
	ch := make(chan *nats.Msg, 64)
	sub, err := b.conn.ChanSubscribe(subject, ch)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			var ev Event
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				continue
			}
			fn(ev)
		}
	}
}

// =============================================================================
// NOTIFIERS
// =============================================================================

// Notifier publishes each change as JSON on Subject(prefix, collection).
type Notifier struct {
	pub    Publisher
	prefix string
	now    func() time.Time
}

var _ inventory.Notifier = (*Notifier)(nil)

func NewNotifier(pub Publisher, prefix string) *Notifier {
	return &Notifier{pub: pub, prefix: prefix, now: time.Now}
}

// Notify publishes every change and returns all publish failures joined.
func (n *Notifier) Notify(ctx context.Context, changes []inventory.Change) error {
	at := n.now().UTC()
	var errs []error
	for _, c := range changes {
		data, err := json.Marshal(Event{Change: c, At: at})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := n.pub.Publish(ctx, Subject(n.prefix, c.Collection), data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps the most recent changes in memory.
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

var _ inventory.Notifier = (*Recorder)(nil)

// NewRecorder keeps up to limit events; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(_ context.Context, changes []inventory.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := time.Now().UTC()
	for _, c := range changes {
		r.events = append(r.events, Event{Change: c, At: at})
	}
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]Event(nil), r.events[len(r.events)-r.limit:]...)
	}
	return nil
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Fanout notifies every notifier and joins their errors.
type Fanout []inventory.Notifier

func (f Fanout) Notify(ctx context.Context, changes []inventory.Change) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, changes); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
