package ddpnet

import (
	"context"
	"encoding/json"
	"time"
)

// Client is a realtime protocol client over a single duplex WebSocket
// connection. The connection carries interleaved method-call results,
// subscription lifecycle signals, keepalive pings and asynchronous
// "document changed" push events; the client correlates results to the
// in-flight request that produced them and fans push events out to
// registered listeners in submission order.
//
// A Client owns its correlation table and listener registry for the
// lifetime of one connection. Create a new Client per connection; there
// is no process-wide state, so independent connections can run
// concurrently.
//
// Example usage:
//
//	import "github.com/luciancaetano/ddpnet/ddp"
//
//	client, err := ddp.New(&ddp.Config{
//	    Server:   "wss://chat.example.com/websocket",
//	    Username: "bot",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client.AddListener(ddpnet.EventRoomMessage, ddpnet.ListenerFunc(func(payload json.RawMessage) {
//	    log.Printf("room message: %s", payload)
//	}))
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
type Client interface {
	// Connect dials the server and starts the connection loops. The
	// handshake and login exchange happen asynchronously, driven by the
	// inbound message stream; wait for the EventLoggedIn event (or call
	// WaitAuthenticated) before issuing authenticated method calls.
	//
	// Returns an error if the dial fails or the client was already
	// connected.
	Connect(ctx context.Context) error

	// Close stops the connection loops, closes the transport and resolves
	// every still-pending call and subscription with ErrConnectionClosed
	// so no caller awaits forever. Close is idempotent.
	Close(ctx context.Context) error

	// Wait blocks until the connection loops have exited, returning the
	// first loop error, if any. Useful for long-running bots that have no
	// other foreground work.
	Wait() error

	// IsAlive reports whether the underlying connection is still open.
	IsAlive() bool

	// WaitAuthenticated blocks until the login exchange has completed or
	// the context is done.
	WaitAuthenticated(ctx context.Context) error

	// Call issues a remote method call and blocks until the matching
	// result message arrives, the context is done, or the connection is
	// torn down. The returned value is the raw result payload.
	//
	// Failures surface as *ServerError (typed application-level failure
	// from the server) or ErrConnectionClosed (teardown). A server
	// too-many-requests error is retried once after the server-specified
	// reset interval before being surfaced.
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// Subscribe opens a named server-side data feed and blocks until the
	// server marks it ready. Documents arriving on the feed surface as
	// EventAdded/EventChanged/EventUpdated/EventRemoved events.
	Subscribe(ctx context.Context, name string, params ...any) error

	// AddListener registers a listener for the named event. Listeners for
	// the same event are invoked in registration order. The returned id
	// is the handle for RemoveListener.
	AddListener(event string, l Listener) ListenerID

	// RemoveListener removes a previously registered listener. Returns
	// false if the listener is not registered; this is never an error.
	RemoveListener(event string, id ListenerID) bool

	// Session returns the server-assigned session id captured from the
	// connection handshake, or "" before the handshake completes.
	Session() string

	// UserID returns the authenticated user id, or "" before login.
	UserID() string

	// Token returns the resume token issued at login, or "" before login.
	Token() string

	// TokenExpires returns the expiry time of the resume token, or the
	// zero time before login.
	TokenExpires() time.Time

	// SendMessage posts a text message to a room.
	SendMessage(ctx context.Context, roomID, text string) (json.RawMessage, error)

	// JoinRoom joins a room. joinCode may be empty for rooms without one.
	JoinRoom(ctx context.Context, roomID, joinCode string) (json.RawMessage, error)

	// OpenRoom marks a room as open in the caller's subscription list.
	OpenRoom(ctx context.Context, roomID string) (json.RawMessage, error)

	// LeaveRoom leaves a room.
	LeaveRoom(ctx context.Context, roomID string) (json.RawMessage, error)

	// GetRooms returns the rooms visible to the authenticated user.
	GetRooms(ctx context.Context) (json.RawMessage, error)

	// GetRoomID resolves a room name to its id.
	GetRoomID(ctx context.Context, roomName string) (json.RawMessage, error)

	// LoadHistory loads up to count messages of a room's history. oldest
	// may be nil to load from the most recent message backwards.
	LoadHistory(ctx context.Context, roomID string, oldest *time.Time, count int) (json.RawMessage, error)

	// GetSubscriptions returns the caller's subscription records.
	GetSubscriptions(ctx context.Context) (json.RawMessage, error)

	// SubscribeRoomMessages opens the message stream of a room.
	SubscribeRoomMessages(ctx context.Context, roomID string) error

	// SubscribeNotifyRoom opens a room notification stream (for example
	// UserEventTyping activity).
	SubscribeNotifyRoom(ctx context.Context, roomID, event string) error

	// SubscribeNotifyUser opens a user notification stream for the given
	// event, one of AllowedUserEvents.
	SubscribeNotifyUser(ctx context.Context, userID, event string) error

	// SubscribeUserAll opens every stream in AllowedUserEvents for the
	// authenticated user.
	SubscribeUserAll(ctx context.Context) error

	// SubscribeToRoom opens the message stream and the typing
	// notification stream of a room.
	SubscribeToRoom(ctx context.Context, roomID string) error

	// SubscribeToRooms opens the message and typing notification
	// streams of every room in roomIDs.
	SubscribeToRooms(ctx context.Context, roomIDs []string) error
}

// Listener receives event payloads from the client's dispatcher. The
// dispatcher invokes listeners sequentially in registration order; an
// implementation that wants its work to proceed concurrently with the
// rest of the system hands the payload off to its own goroutine (see
// AsyncListenerFunc). Delivery order is submission order, not completion
// order.
type Listener interface {
	Invoke(payload json.RawMessage)
}

// ListenerFunc adapts a plain function to the Listener interface. The
// function runs synchronously inside the dispatch pass; keep it short or
// use AsyncListenerFunc.
type ListenerFunc func(payload json.RawMessage)

// Invoke calls f.
func (f ListenerFunc) Invoke(payload json.RawMessage) { f(payload) }

// AsyncListenerFunc adapts a function to the Listener interface,
// invoking it on its own goroutine. Submission still happens in
// registration order; only the function body runs concurrently.
type AsyncListenerFunc func(payload json.RawMessage)

// Invoke runs f on a new goroutine.
func (f AsyncListenerFunc) Invoke(payload json.RawMessage) { go f(payload) }

// ListenerID identifies one listener registration. Ids are unique per
// client across all event names.
type ListenerID uint64
