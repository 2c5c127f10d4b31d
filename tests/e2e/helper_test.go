package e2e_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ddpServer is an in-process server speaking enough of the protocol to
// exercise a full client session: greeting, handshake, login, method
// calls, subscriptions and push events.
type ddpServer struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	rateLimited map[string]bool
}

func newDDPServer(t *testing.T) *ddpServer {
	t.Helper()
	s := &ddpServer{t: t, rateLimited: make(map[string]bool)}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.serve(conn)
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *ddpServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/websocket"
}

func (s *ddpServer) write(conn *websocket.Conn, v map[string]any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.t.Errorf("marshal server frame: %v", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.WriteMessage(websocket.TextMessage, data)
}

func (s *ddpServer) serve(conn *websocket.Conn) {
	s.write(conn, map[string]any{"server_id": "0"})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}

		switch m["msg"] {
		case "connect":
			s.write(conn, map[string]any{"msg": "connected", "session": "e2e-session"})
		case "ping":
			pong := map[string]any{"msg": "pong"}
			if id, ok := m["id"]; ok {
				pong["id"] = id
			}
			s.write(conn, pong)
		case "pong":
			// Keepalive acknowledged.
		case "method":
			s.handleMethod(conn, m)
		case "sub":
			s.handleSub(conn, m)
		}
	}
}

func (s *ddpServer) handleMethod(conn *websocket.Conn, m map[string]any) {
	id, _ := m["id"].(string)
	method, _ := m["method"].(string)

	switch method {
	case "login":
		s.write(conn, map[string]any{
			"msg": "result",
			"id":  id,
			"result": map[string]any{
				"id":           "user-1",
				"token":        "tok-1",
				"tokenExpires": map[string]any{"$date": time.Now().Add(90 * 24 * time.Hour).UnixMilli()},
			},
		})

	case "sendMessage":
		params := m["params"].([]any)
		msg := params[0].(map[string]any)
		text, _ := msg["msg"].(string)

		// A message of "429" is rejected once, then accepted on the
		// resend, exercising the client's retry-after path.
		if text == "429" {
			s.mu.Lock()
			first := !s.rateLimited[id]
			s.rateLimited[id] = true
			s.mu.Unlock()
			if first {
				s.write(conn, map[string]any{
					"msg": "result",
					"id":  id,
					"error": map[string]any{
						"error":   "too-many-requests",
						"reason":  "Error, too many requests",
						"details": map[string]any{"timeToReset": 100},
					},
				})
				return
			}
		}
		s.write(conn, map[string]any{
			"msg":    "result",
			"id":     id,
			"result": map[string]any{"_id": msg["_id"], "rid": msg["rid"], "msg": text},
		})

	default:
		s.write(conn, map[string]any{"msg": "result", "id": id, "result": map[string]any{}})
	}
}

func (s *ddpServer) handleSub(conn *websocket.Conn, m map[string]any) {
	id, _ := m["id"].(string)
	name, _ := m["name"].(string)
	s.write(conn, map[string]any{"msg": "ready", "subs": []any{id}})

	// A room message stream immediately pushes one document so tests
	// can observe the event path.
	if name == "stream-room-messages" {
		params := m["params"].([]any)
		roomID, _ := params[0].(string)
		s.write(conn, map[string]any{
			"msg":        "changed",
			"collection": "stream-room-messages",
			"id":         "id",
			"fields": map[string]any{
				"eventName": roomID,
				"args":      []any{map[string]any{"rid": roomID, "msg": "welcome"}},
			},
		})
	}
}
