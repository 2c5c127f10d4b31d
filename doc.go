// Package ddpnet provides a client for DDP-style realtime servers over WebSocket.
//
// A single duplex connection carries interleaved method-call results,
// subscription lifecycle signals, keepalive pings and asynchronous document
// push events. The client classifies every inbound message, matches results
// to the exact in-flight request that produced them, turns protocol-level
// error payloads into typed failures for the right waiter, and fans
// unsolicited push messages out to registered listeners in submission order.
//
// # Architecture
//
// Inbound messages flow through a single-consumer loop:
//
//	transport -> connection loop (FIFO) -> router -> {correlator | dispatcher | built-in reaction}
//
// The router reacts to protocol messages (connection handshake, keepalive
// pong, login) on independent goroutines so the consumer never blocks on a
// reaction that itself waits for a future inbound message. Method calls and
// subscriptions register a caller-supplied correlation id before sending;
// the matching result or ready message resolves the waiter exactly once.
//
// # Quick Start
//
//	import (
//	    "github.com/luciancaetano/ddpnet"
//	    "github.com/luciancaetano/ddpnet/ddp"
//	)
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
//	// React to room messages
//	client.AddListener(ddpnet.EventRoomMessage, ddpnet.ListenerFunc(func(payload json.RawMessage) {
//	    fmt.Printf("message: %s\n", payload)
//	}))
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(context.Background())
//
//	if err := client.WaitAuthenticated(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	client.SubscribeToRoom(ctx, roomID)
//	client.SendMessage(ctx, roomID, "hello")
//
// # Protocol
//
// Messages are JSON objects discriminated by a "msg" member. Outbound calls
// and subscriptions carry a client-chosen correlation id (a monotonically
// increasing counter) that appears unchanged in the matching inbound result
// or ready message. Push events (added/changed/updated/removed/failed) carry
// no correlation id and are delivered to listeners instead.
//
// # Error Handling
//
// Server failures surface to the original caller as *ServerError, carrying
// the raw error payload and the original request so the caller can retry.
// The one automatic retry the client performs is the server
// too-many-requests rejection: the original request is resent exactly once
// after the server-specified reset interval. Connection teardown resolves
// every pending call with ErrConnectionClosed; nothing awaits forever.
//
// # Important
//
//   - One Client per connection; create a fresh Client to reconnect.
//   - Listeners run inside the dispatch pass; use AsyncListenerFunc for
//     long-running work.
//   - Unrecognized inbound messages are logged and dropped, never fatal.
package ddpnet
