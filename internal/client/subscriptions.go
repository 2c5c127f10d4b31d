package client

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/luciancaetano/ddpnet"
)

// SubscribeRoomMessages opens the message stream of a room.
func (c *Client) SubscribeRoomMessages(ctx context.Context, roomID string) error {
	return c.Subscribe(ctx, ddpnet.CollectionRoomMessages, roomID, false)
}

// SubscribeNotifyRoom opens a room notification stream, for example
// typing activity.
func (c *Client) SubscribeNotifyRoom(ctx context.Context, roomID, event string) error {
	return c.Subscribe(ctx, ddpnet.CollectionNotifyRoom, roomID+"/"+event, false)
}

// SubscribeNotifyUser opens a user notification stream. event must be
// one of AllowedUserEvents.
func (c *Client) SubscribeNotifyUser(ctx context.Context, userID, event string) error {
	if !slices.Contains(ddpnet.AllowedUserEvents, event) {
		return fmt.Errorf("user event %q is not allowed", event)
	}
	return c.Subscribe(ctx, ddpnet.CollectionNotifyUser, userID+"/"+event, false)
}

// SubscribeUserAll opens every allowed user notification stream for the
// authenticated user. The subscriptions open concurrently; the first
// failure is returned after all attempts finish.
func (c *Client) SubscribeUserAll(ctx context.Context) error {
	userID := c.UserID()
	if userID == "" {
		return ddpnet.ErrNotConnected
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, event := range ddpnet.AllowedUserEvents {
		event := event
		group.Go(func() error {
			return c.SubscribeNotifyUser(gctx, userID, event)
		})
	}
	return group.Wait()
}

// SubscribeToRoom opens the message stream and the typing notification
// stream of a room.
func (c *Client) SubscribeToRoom(ctx context.Context, roomID string) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.SubscribeRoomMessages(gctx, roomID)
	})
	group.Go(func() error {
		return c.SubscribeNotifyRoom(gctx, roomID, ddpnet.RoomEventTyping)
	})
	return group.Wait()
}

// SubscribeToRooms opens the message and typing notification streams of
// every room in roomIDs.
func (c *Client) SubscribeToRooms(ctx context.Context, roomIDs []string) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, roomID := range roomIDs {
		roomID := roomID
		group.Go(func() error {
			return c.SubscribeToRoom(gctx, roomID)
		})
	}
	return group.Wait()
}
