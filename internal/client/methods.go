package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Remote method names.
const (
	methodLogin            = "login"
	methodSendMessage      = "sendMessage"
	methodJoinRoom         = "joinRoom"
	methodOpenRoom         = "openRoom"
	methodLeaveRoom        = "leaveRoom"
	methodGetRooms         = "rooms/get"
	methodGetRoomID        = "getRoomIdByNameOrId"
	methodLoadHistory      = "loadHistory"
	methodGetSubscriptions = "subscriptions/get"
)

type loginResult struct {
	ID           string `json:"id"`
	Token        string `json:"token"`
	TokenExpires struct {
		Date int64 `json:"$date"`
	} `json:"tokenExpires"`
}

// login issues the login call matching the configured authentication
// method and captures token, user id and expiry from the result.
func (c *Client) login(ctx context.Context) (json.RawMessage, error) {
	var params []any
	if c.cfg.UseLDAP {
		params = []any{map[string]any{
			"ldap":        true,
			"username":    c.cfg.Username,
			"ldapPass":    c.cfg.Password,
			"ldapOptions": map[string]any{},
		}}
	} else {
		digest := sha256.Sum256([]byte(c.cfg.Password))
		params = []any{map[string]any{
			"user": map[string]any{"username": c.cfg.Username},
			"password": map[string]any{
				"digest":    hex.EncodeToString(digest[:]),
				"algorithm": "sha-256",
			},
		}}
	}

	result, err := c.Call(ctx, methodLogin, params...)
	if err != nil {
		return nil, err
	}

	var res loginResult
	if err := json.Unmarshal(result, &res); err != nil {
		return nil, fmt.Errorf("parse login result: %w", err)
	}

	c.mu.Lock()
	c.token = res.Token
	c.userID = res.ID
	if res.TokenExpires.Date > 0 {
		c.tokenExpires = time.UnixMilli(res.TokenExpires.Date)
	}
	c.mu.Unlock()

	return result, nil
}

// SendMessage posts a text message to a room. The message id is
// client-chosen so a retried send stays idempotent on the server.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) (json.RawMessage, error) {
	return c.Call(ctx, methodSendMessage, map[string]any{
		"_id": uuid.New().String(),
		"rid": roomID,
		"msg": text,
	})
}

// JoinRoom joins a room, with a join code when the room requires one.
func (c *Client) JoinRoom(ctx context.Context, roomID, joinCode string) (json.RawMessage, error) {
	if joinCode == "" {
		return c.Call(ctx, methodJoinRoom, roomID)
	}
	return c.Call(ctx, methodJoinRoom, roomID, joinCode)
}

// OpenRoom marks a room as open in the caller's subscription list.
func (c *Client) OpenRoom(ctx context.Context, roomID string) (json.RawMessage, error) {
	return c.Call(ctx, methodOpenRoom, roomID)
}

// LeaveRoom leaves a room.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) (json.RawMessage, error) {
	return c.Call(ctx, methodLeaveRoom, roomID)
}

// GetRooms returns the rooms visible to the authenticated user.
func (c *Client) GetRooms(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, methodGetRooms, dateParam(time.UnixMilli(0)))
}

// GetRoomID resolves a room name to its id.
func (c *Client) GetRoomID(ctx context.Context, roomName string) (json.RawMessage, error) {
	return c.Call(ctx, methodGetRoomID, roomName)
}

// LoadHistory loads up to count messages of a room's history, oldest
// bounding how far back to read. A nil oldest reads from the most
// recent message backwards.
func (c *Client) LoadHistory(ctx context.Context, roomID string, oldest *time.Time, count int) (json.RawMessage, error) {
	var oldestParam any
	if oldest != nil {
		oldestParam = dateParam(*oldest)
	}
	return c.Call(ctx, methodLoadHistory, roomID, oldestParam, count, nil)
}

// GetSubscriptions returns the caller's subscription records.
func (c *Client) GetSubscriptions(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, methodGetSubscriptions)
}

// dateParam renders t in the protocol's EJSON date shape.
func dateParam(t time.Time) map[string]any {
	return map[string]any{"$date": t.UnixMilli()}
}
