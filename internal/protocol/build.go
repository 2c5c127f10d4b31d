package protocol

import (
	"encoding/json"
	"fmt"
)

// outbound is the superset of members an outbound frame can carry.
type outbound struct {
	Msg     string   `json:"msg"`
	Version string   `json:"version,omitempty"`
	Support []string `json:"support,omitempty"`
	ID      string   `json:"id,omitempty"`
	Method  string   `json:"method,omitempty"`
	Name    string   `json:"name,omitempty"`
	Params  []any    `json:"params,omitempty"`
}

const protocolVersion = "1"

// Connect builds the connection handshake frame.
func Connect() ([]byte, error) {
	return encode(outbound{
		Msg:     "connect",
		Version: protocolVersion,
		Support: []string{protocolVersion},
	})
}

// Ping builds a keepalive probe. id may be empty.
func Ping(id string) ([]byte, error) {
	return encode(outbound{Msg: "ping", ID: id})
}

// Pong builds the answer to a ping. id echoes the ping's id and may be
// empty.
func Pong(id string) ([]byte, error) {
	return encode(outbound{Msg: "pong", ID: id})
}

// Method builds a method call frame. The id is the correlation key that
// will appear unchanged in the matching result message.
func Method(id, method string, params []any) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("method %q: empty correlation id", method)
	}
	return encode(outbound{Msg: "method", ID: id, Method: method, Params: params})
}

// Sub builds a subscription request frame. The id is the correlation key
// that will appear in the matching ready message.
func Sub(id, name string, params []any) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("sub %q: empty correlation id", name)
	}
	return encode(outbound{Msg: "sub", ID: id, Name: name, Params: params})
}

// Unsub builds a subscription stop frame.
func Unsub(id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("unsub: empty correlation id")
	}
	return encode(outbound{Msg: "unsub", ID: id})
}

func encode(m outbound) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", m.Msg, err)
	}
	return data, nil
}
