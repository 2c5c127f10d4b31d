package ddpnet

// Event names fired by the client's dispatcher. Lifecycle events first,
// then the raw push-message events, then the changed-collection events
// derived from the collection a changed message targets.
const (
	// EventConnectionEstablished fires when the transport is up, before
	// the protocol handshake. Payload is nil.
	EventConnectionEstablished = "connection_established"
	// EventLoggedIn fires after a successful login exchange. Payload is
	// the raw login result.
	EventLoggedIn = "logged_in"

	// Raw push-message events. Payload is the full inbound message.
	EventAdded   = "added"
	EventChanged = "changed"
	EventUpdated = "updated"
	EventRemoved = "removed"
	EventFailed  = "failed"

	// Changed-collection events, fired in addition to EventChanged when
	// a changed message targets one of the known stream collections.
	EventUsers       = "users"
	EventNotifyUser  = "notify_user"
	EventNotifyRoom  = "notify_room"
	EventRoomMessage = "room_message"
)

// Stream collection names carried by changed messages.
const (
	CollectionUsers        = "users"
	CollectionNotifyUser   = "stream-notify-user"
	CollectionNotifyRoom   = "stream-notify-room"
	CollectionRoomMessages = "stream-room-messages"
)

// User notification events accepted by SubscribeNotifyUser.
const (
	UserEventMessage              = "message"
	UserEventOTR                  = "otr"
	UserEventWebRTC               = "webrtc"
	UserEventNotification         = "notification"
	UserEventRoomsChanged         = "rooms-changed"
	UserEventSubscriptionsChanged = "subscriptions-changed"
)

// Room notification events for SubscribeNotifyRoom.
const (
	RoomEventTyping       = "typing"
	RoomEventDeleteMsg    = "deleteMessage"
	RoomEventUserActivity = "user-activity"
)

// AllowedUserEvents lists every user notification stream SubscribeUserAll
// opens.
var AllowedUserEvents = []string{
	UserEventMessage,
	UserEventOTR,
	UserEventWebRTC,
	UserEventNotification,
	UserEventRoomsChanged,
	UserEventSubscriptionsChanged,
}

// ErrorKindTooManyRequests is the server error kind that triggers the
// single automatic resend after the server-specified reset interval.
const ErrorKindTooManyRequests = "too-many-requests"
