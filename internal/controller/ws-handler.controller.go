package controller

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sharetube/watchsync/internal/service/room"
)

func parseTimestamp(arg string) (float64, error) {
	ts, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", room.ErrProtocolViolation, err)
	}

	return ts, nil
}

func (c controller) handleCreate(ctx context.Context, conn *wsConn, _ []string) (string, error) {
	return c.roomService.CreateRoom(ctx, conn)
}

func (c controller) handleJoin(ctx context.Context, conn *wsConn, args []string) (string, error) {
	return c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		Conn:   conn,
		RoomId: args[0],
	})
}

func (c controller) handlePlay(ctx context.Context, conn *wsConn, args []string) (string, error) {
	ts, err := parseTimestamp(args[0])
	if err != nil {
		return "", err
	}

	return c.roomService.CoordinatePlay(ctx, &room.CoordinatePlayParams{
		Conn:      conn,
		Timestamp: ts,
		IsPlaying: true,
	})
}

func (c controller) handlePause(ctx context.Context, conn *wsConn, args []string) (string, error) {
	ts, err := parseTimestamp(args[0])
	if err != nil {
		return "", err
	}

	return c.roomService.ClientPause(ctx, &room.PlaybackParams{Conn: conn, Timestamp: ts})
}

func (c controller) handleReady(ctx context.Context, conn *wsConn, args []string) (string, error) {
	ts, err := parseTimestamp(args[0])
	if err != nil {
		return "", err
	}

	return c.roomService.ClientReady(ctx, &room.PlaybackParams{Conn: conn, Timestamp: ts})
}

func (c controller) handleBuffer(ctx context.Context, conn *wsConn, args []string) (string, error) {
	ts, err := parseTimestamp(args[0])
	if err != nil {
		return "", err
	}

	return c.roomService.HandleBuffering(ctx, &room.PlaybackParams{Conn: conn, Timestamp: ts})
}

func (c controller) handleSync(ctx context.Context, conn *wsConn, _ []string) (string, error) {
	return c.roomService.Sync(ctx, conn)
}

func (c controller) handleEnd(ctx context.Context, conn *wsConn, args []string) (string, error) {
	return c.roomService.SetEnded(ctx, &room.SetEndedParams{Conn: conn, Item: args[0]})
}

func (c controller) handleSkip(ctx context.Context, conn *wsConn, _ []string) (string, error) {
	return c.roomService.Skip(ctx, conn)
}

func (c controller) handleQueueAdd(ctx context.Context, conn *wsConn, args []string) (string, error) {
	return c.roomService.Enqueue(ctx, &room.EnqueueParams{
		Conn:  conn,
		Query: strings.Join(args, " "),
	})
}

func (c controller) handleQueueRm(ctx context.Context, conn *wsConn, args []string) (string, error) {
	return c.roomService.Dequeue(ctx, &room.DequeueParams{Conn: conn, ItemId: args[0]})
}

func (c controller) handleQueueOrder(ctx context.Context, conn *wsConn, args []string) (string, error) {
	var order string
	if len(args) > 0 {
		order = args[0]
	}

	return c.roomService.Reorder(ctx, &room.ReorderParams{Conn: conn, Order: order})
}
