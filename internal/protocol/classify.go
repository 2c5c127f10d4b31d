package protocol

// MessageKind tags one inbound message with the route it takes through
// the client: a correlator resolution, a dispatcher event, or a built-in
// protocol reaction.
type MessageKind int

const (
	// KindNone is a frame with no msg member, such as the server_id
	// greeting sent when the socket opens. It triggers the connection
	// handshake.
	KindNone MessageKind = iota
	// KindPing is a keepalive probe; the client answers with a pong.
	KindPing
	// KindPong acknowledges a ping the client sent.
	KindPong
	// KindConnected acknowledges the connection handshake and carries
	// the session id.
	KindConnected
	// KindResult is the terminal response to a method call.
	KindResult
	// KindReady marks one or more subscriptions as live.
	KindReady
	// KindAdded through KindRemoved are document push events.
	KindAdded
	KindChanged
	KindUpdated
	KindRemoved
	// KindFailed reports a failed protocol version negotiation.
	KindFailed
	// KindUnknown absorbs every unrecognized shape. Unknown messages are
	// logged and dropped, never fatal.
	KindUnknown
)

var kindNames = map[MessageKind]string{
	KindNone:      "none",
	KindPing:      "ping",
	KindPong:      "pong",
	KindConnected: "connected",
	KindResult:    "result",
	KindReady:     "ready",
	KindAdded:     "added",
	KindChanged:   "changed",
	KindUpdated:   "updated",
	KindRemoved:   "removed",
	KindFailed:    "failed",
	KindUnknown:   "unknown",
}

// String returns the wire name of the kind.
func (k MessageKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Classify maps a decoded message to its kind. Pure and total: identical
// input always yields identical classification, unrecognized shapes map
// to KindUnknown, and no input raises.
func Classify(m *Message) MessageKind {
	if m == nil {
		return KindUnknown
	}
	switch m.Msg {
	case "":
		return KindNone
	case "ping":
		return KindPing
	case "pong":
		return KindPong
	case "connected":
		return KindConnected
	case "result":
		return KindResult
	case "ready":
		return KindReady
	case "added":
		return KindAdded
	case "changed":
		return KindChanged
	case "updated":
		return KindUpdated
	case "removed":
		return KindRemoved
	case "failed":
		return KindFailed
	default:
		return KindUnknown
	}
}
