// Package correlator tracks outstanding call and subscription ids and
// resolves each exactly once when its terminal message arrives.
package correlator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/luciancaetano/ddpnet"
)

// Kind distinguishes a one-shot method call from a standing
// subscription. Both share the same id space.
type Kind int

const (
	// KindCall awaits a result message.
	KindCall Kind = iota
	// KindSubscription awaits a ready message.
	KindSubscription
)

// String returns a short name for logging.
func (k Kind) String() string {
	if k == KindSubscription {
		return "subscription"
	}
	return "call"
}

type outcome struct {
	value json.RawMessage
	err   error
}

// Pending is one outstanding request awaiting a single terminal
// response. The slot is filled exactly once; exactly one waiter observes
// it through Await.
type Pending struct {
	id       string
	kind     Kind
	original []byte
	done     chan outcome
}

// ID returns the correlation id.
func (p *Pending) ID() string { return p.id }

// Kind returns whether this entry is a call or a subscription.
func (p *Pending) Kind() Kind { return p.kind }

// Await blocks until the entry is resolved or the context is done. The
// success value or the typed failure that resolved the entry is
// returned as-is; there are no silent timeouts and no partial results.
func (p *Pending) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case out := <-p.done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Table owns the pending entries of one connection. Callers register
// entries concurrently from many goroutines; only the connection's
// single consumer loop resolves them, so one mutex with O(1) map access
// is enough and resolution itself is uncontended.
type Table struct {
	mu      sync.Mutex
	closed  bool
	entries map[string]*pendingEntry
	logger  *slog.Logger
}

type pendingEntry struct {
	p       *Pending
	retried bool
}

// New creates an empty table. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		entries: make(map[string]*pendingEntry),
		logger:  logger,
	}
}

// Register creates a pending entry for id. The original outbound payload
// is retained so a server rate-limit rejection can be resent and so
// failures can carry the request that produced them. Fails with
// ErrDuplicateID while an entry for id is still pending; ids must not be
// reused until their entry is removed. Fails with ErrConnectionClosed
// once CancelAll has run: no entry may be created after teardown, since
// nothing would ever resolve it.
func (t *Table) Register(id string, kind Kind, original []byte) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("register %s %q: %w", kind, id, ddpnet.ErrConnectionClosed)
	}
	if _, ok := t.entries[id]; ok {
		return nil, fmt.Errorf("register %s %q: %w", kind, id, ddpnet.ErrDuplicateID)
	}

	p := &Pending{
		id:       id,
		kind:     kind,
		original: original,
		done:     make(chan outcome, 1),
	}
	t.entries[id] = &pendingEntry{p: p}
	return p, nil
}

// Discard removes an entry without resolving it. Used when sending the
// request failed and no terminal message will ever arrive.
func (t *Table) Discard(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

// ResolveSuccess fills the slot for id with a success value and removes
// the entry. An unknown id returns ErrUnknownID: the guard against
// duplicate or late server replies. The caller logs and drops it.
func (t *Table) ResolveSuccess(id string, value json.RawMessage) error {
	return t.resolve(id, outcome{value: value})
}

// ResolveFailure fills the slot for id with a typed failure and removes
// the entry. The entry's original request payload is attached to the
// error before delivery. Same unknown-id rule as ResolveSuccess.
func (t *Table) ResolveFailure(id string, serr *ddpnet.ServerError) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("resolve failure %q: %w", id, ddpnet.ErrUnknownID)
	}

	serr.OriginalRequest = e.p.original
	e.p.done <- outcome{err: serr}
	return nil
}

// MarkReady transitions a registered subscription to ready, waking its
// waiter. A ready signal for an id that is not a pending subscription is
// a protocol error and returns ErrUnknownID rather than silently
// succeeding.
func (t *Table) MarkReady(id string) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok && e.p.kind != KindSubscription {
		ok = false
		t.logger.Warn("ready signal for non-subscription id", "id", id, "kind", e.p.kind.String())
	}
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("mark ready %q: %w", id, ddpnet.ErrUnknownID)
	}

	e.p.done <- outcome{}
	return nil
}

// RetryOriginal returns the original outbound payload of a pending entry
// the first time it is asked for id, marking the entry as retried. The
// entry stays pending so its waiter still observes the eventual terminal
// message. Returns false when the id is unknown or has already been
// retried once; the caller then surfaces the failure instead.
func (t *Table) RetryOriginal(id string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.retried {
		return nil, false
	}
	e.retried = true
	return e.p.original, true
}

// CancelAll resolves every still-pending entry with reason, empties the
// table and closes it to further registrations. Called on connection
// teardown so no caller awaits forever; this is the sole mechanism
// preventing waiter leaks across reconnects.
func (t *Table) CancelAll(reason error) {
	t.mu.Lock()
	t.closed = true
	entries := t.entries
	t.entries = make(map[string]*pendingEntry)
	t.mu.Unlock()

	for id, e := range entries {
		e.p.done <- outcome{err: reason}
		t.logger.Debug("cancelled pending entry", "id", id, "kind", e.p.kind.String())
	}
}

// Len returns the number of pending entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) resolve(id string, out outcome) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("resolve %q: %w", id, ddpnet.ErrUnknownID)
	}

	e.p.done <- out
	return nil
}
