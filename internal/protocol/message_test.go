package protocol

import (
	"strings"
	"testing"
	"time"
)

// TestDecode tests decoding of inbound frames
func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantError bool
		check     func(t *testing.T, m *Message)
	}{
		{
			name: "connected carries session",
			raw:  `{"msg":"connected","session":"s-99"}`,
			check: func(t *testing.T, m *Message) {
				if m.Session != "s-99" {
					t.Errorf("Session = %q, want %q", m.Session, "s-99")
				}
			},
		},
		{
			name: "ready carries sub ids",
			raw:  `{"msg":"ready","subs":["sub-1","sub-2"]}`,
			check: func(t *testing.T, m *Message) {
				if len(m.Subs) != 2 || m.Subs[0] != "sub-1" || m.Subs[1] != "sub-2" {
					t.Errorf("Subs = %v, want [sub-1 sub-2]", m.Subs)
				}
			},
		},
		{
			name: "result with value",
			raw:  `{"msg":"result","id":"42","result":{"ok":true,"value":7}}`,
			check: func(t *testing.T, m *Message) {
				if m.ID != "42" {
					t.Errorf("ID = %q, want %q", m.ID, "42")
				}
				if m.Error != nil {
					t.Errorf("Error = %+v, want nil", m.Error)
				}
				if len(m.Result) == 0 {
					t.Error("Result is empty")
				}
			},
		},
		{
			name: "result with string error code",
			raw:  `{"msg":"result","id":"7","error":{"error":"too-many-requests","reason":"Slow down","errorType":"Meteor.Error","details":{"timeToReset":2000}}}`,
			check: func(t *testing.T, m *Message) {
				if m.Error == nil {
					t.Fatal("Error is nil")
				}
				if m.Error.Code != "too-many-requests" {
					t.Errorf("Code = %q, want %q", m.Error.Code, "too-many-requests")
				}
				if m.Error.Reason != "Slow down" {
					t.Errorf("Reason = %q, want %q", m.Error.Reason, "Slow down")
				}
				if got := m.Error.Details.ResetInterval(); got != 2*time.Second {
					t.Errorf("ResetInterval() = %v, want 2s", got)
				}
			},
		},
		{
			name: "result with numeric error code",
			raw:  `{"msg":"result","id":"8","error":{"error":403,"reason":"forbidden"}}`,
			check: func(t *testing.T, m *Message) {
				if m.Error == nil {
					t.Fatal("Error is nil")
				}
				if m.Error.Code != "403" {
					t.Errorf("Code = %q, want %q", m.Error.Code, "403")
				}
			},
		},
		{
			name: "result with null error is success",
			raw:  `{"msg":"result","id":"9","error":null,"result":{}}`,
			check: func(t *testing.T, m *Message) {
				if m.Error != nil {
					t.Errorf("Error = %+v, want nil", m.Error)
				}
			},
		},
		{
			name: "changed carries collection and fields",
			raw:  `{"msg":"changed","collection":"stream-room-messages","fields":{"args":[{"msg":"hi"}]}}`,
			check: func(t *testing.T, m *Message) {
				if m.Collection != "stream-room-messages" {
					t.Errorf("Collection = %q, want stream-room-messages", m.Collection)
				}
				if len(m.Fields) == 0 {
					t.Error("Fields is empty")
				}
			},
		},
		{
			name:      "malformed frame",
			raw:       `{"msg":`,
			wantError: true,
		},
		{
			name:      "non-object frame",
			raw:       `[1,2,3]`,
			wantError: true,
		},
		{
			name:      "error code of invalid type",
			raw:       `{"msg":"result","id":"1","error":{"error":{"nested":true}}}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, err := Decode([]byte(tt.raw))
			if (err != nil) != tt.wantError {
				t.Fatalf("Decode() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				return
			}

			if string(m.Raw) != tt.raw {
				t.Errorf("Raw = %s, want %s", m.Raw, tt.raw)
			}
			if tt.check != nil {
				tt.check(t, m)
			}
		})
	}
}

// TestDecodeOversizedFrame tests the frame size cap
func TestDecodeOversizedFrame(t *testing.T) {
	t.Parallel()

	big := `{"msg":"ping","id":"` + strings.Repeat("x", maxPayloadSize) + `"}`
	if _, err := Decode([]byte(big)); err == nil {
		t.Error("Decode() of oversized frame succeeded, want error")
	}
}

// TestErrorCodeMarshal tests round-tripping of string and numeric codes
func TestErrorCodeMarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code ErrorCode
		want string
	}{
		{"too-many-requests", `"too-many-requests"`},
		{"403", `403`},
	}

	for _, tt := range tests {
		got, err := tt.code.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if string(got) != tt.want {
			t.Errorf("MarshalJSON() = %s, want %s", got, tt.want)
		}
	}
}
