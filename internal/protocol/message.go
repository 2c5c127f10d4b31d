// Package protocol implements the JSON wire format of the realtime
// protocol: decoding inbound messages, classifying them by kind, and
// building outbound frames.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const maxPayloadSize = 10 * 1024 * 1024 // 10MB max frame size

// Message is one decoded inbound frame. Only the members relevant to a
// given kind are populated; Raw always holds the untouched frame so
// listeners receive exactly what the server sent.
type Message struct {
	Raw        json.RawMessage `json:"-"`
	Msg        string          `json:"msg"`
	ID         string          `json:"id"`
	Session    string          `json:"session"`
	ServerID   string          `json:"server_id"`
	Version    string          `json:"version"`
	Subs       []string        `json:"subs"`
	Collection string          `json:"collection"`
	Fields     json.RawMessage `json:"fields"`
	Result     json.RawMessage `json:"result"`
	Error      *ErrorPayload   `json:"error"`
}

// ErrorPayload is the error member of a failed result message. Raw
// keeps the untouched payload so callers retain members this struct
// does not model.
type ErrorPayload struct {
	Code      ErrorCode       `json:"error"`
	Reason    string          `json:"reason"`
	Message   string          `json:"message"`
	ErrorType string          `json:"errorType"`
	Details   ErrorDetails    `json:"details"`
	Raw       json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the modeled members and captures the raw bytes.
func (e *ErrorPayload) UnmarshalJSON(data []byte) error {
	type plain ErrorPayload
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ErrorPayload(p)
	e.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// ErrorDetails carries the structured members of an error payload the
// client acts on. TimeToReset is in milliseconds.
type ErrorDetails struct {
	TimeToReset float64 `json:"timeToReset"`
}

// ResetInterval returns TimeToReset as a duration.
func (d ErrorDetails) ResetInterval() time.Duration {
	return time.Duration(d.TimeToReset) * time.Millisecond
}

// ErrorCode is the error discriminator. Servers send either a string
// ("too-many-requests") or a numeric code (403); numeric codes decode to
// their decimal rendering so callers compare against one string form.
type ErrorCode string

// UnmarshalJSON accepts a JSON string or number.
func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ErrorCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("error code is neither string nor number: %w", err)
	}
	*c = ErrorCode(n.String())
	return nil
}

// MarshalJSON renders numeric-looking codes as numbers and everything
// else as strings, mirroring what servers send.
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(c), 64); err == nil {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// Decode parses one inbound frame. The returned message keeps a
// reference to data in Raw; callers must not modify the input.
func Decode(data []byte) (*Message, error) {
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d bytes", len(data), maxPayloadSize)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	m.Raw = data
	return &m, nil
}
