package room

import (
	"context"
	"fmt"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	rules "github.com/sharetube/watchsync/internal/service"
	"github.com/sharetube/watchsync/pkg/ytvideodata"
)

const youtubeHome = "https://www.youtube.com/"

// faviconPage picks the page whose favicon represents a query.
func faviconPage(query, resolvedURL string) string {
	if ytvideodata.IsURL(query) {
		if _, ok := ytvideodata.ExtractVideoId(query); !ok {
			return query
		}
		return youtubeHome
	}
	if resolvedURL != "" {
		return resolvedURL
	}
	return youtubeHome
}

// initialItem builds a loading item from what the query alone reveals.
func (s *service) initialItem(query string) *QueueItem {
	item := QueueItem{
		OriginalQuery: query,
		Loading:       true,
		Id:            uuid.NewString(),
	}

	if start, ok := ytvideodata.FindStartTimeSeconds(query); ok {
		item.StartTimeSeconds = &start
	}
	if videoId, ok := ytvideodata.ExtractVideoId(query); ok {
		item.Source = &VideoSource{URL: ytvideodata.WatchURL(videoId)}
		item.Thumbnail = ytvideodata.ThumbnailURL(videoId)
	}
	item.Favicon = s.faviconResolver.Initial(faviconPage(query, ""))

	return &item
}

// Enqueue appends a video to the queue. A YouTube link added to an empty queue
// starts playing at once; everything else is resolved in the background.
func (s *service) Enqueue(ctx context.Context, params *EnqueueParams) (string, error) {
	params.Query = strings.TrimSpace(params.Query)
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Query, rules.QueryRule...),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	r, _, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	item := s.initialItem(params.Query)

	if len(r.queue) == 0 && item.Source != nil {
		item.Loading = false
		r.queue = append(r.queue, item)
		r.totalVideosQueued++
		s.clearSyncTimeout(r)
		s.playHead(ctx, r, false)
		return "queue add", nil
	}

	for _, other := range r.queue {
		if item.isDuplicateOf(other) {
			params.Conn.Send("queue err duplicate")
			return "queue err duplicate", nil
		}
	}

	r.queue = append(r.queue, item)
	r.totalVideosQueued++
	if len(r.queue) > 1 {
		s.broadcastAll(ctx, r, "queue add "+mustJSON(item))
	}

	conn, itemId, query := params.Conn, item.Id, params.Query
	jobCtx := context.WithoutCancel(ctx)
	if err := s.pool.Submit(func() { s.resolveItem(jobCtx, r, conn, itemId, query) }); err != nil {
		s.logger.WarnContext(ctx, "failed to schedule video resolution", "error", err)
		s.retractItem(ctx, r, r.itemIndex(itemId))
		params.Conn.Send("queue err not-found")
		return "queue err not-found", nil
	}

	return "queue add", nil
}

// Dequeue removes an item other than the one playing.
func (s *service) Dequeue(ctx context.Context, params *DequeueParams) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.ItemId, rules.QueueItemIdRule...),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	r, _, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	idx := r.itemIndex(params.ItemId)
	switch {
	case idx == 0:
		return "queue rm deny", nil
	case idx < 0:
		return "queue rm old", nil
	}

	r.queue = slices.Delete(r.queue, idx, idx+1)
	s.broadcastAll(ctx, r, "queue rm "+params.ItemId)

	return "queue rm", nil
}

// Reorder applies a new order to the items behind the playing one. The order
// must name each of those items exactly once.
func (s *service) Reorder(ctx context.Context, params *ReorderParams) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Order, rules.QueueOrderRule...),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	r, _, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	var ids []string
	if params.Order != "" {
		ids = strings.Split(params.Order, ",")
	}
	if len(r.queue) == 0 || len(ids) != len(r.queue)-1 {
		return "queue order deny", nil
	}

	reordered := make([]*QueueItem, 0, len(r.queue))
	reordered = append(reordered, r.queue[0])
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		idx := r.itemIndex(id)
		if idx < 1 || seen[id] {
			return "queue order deny", nil
		}
		seen[id] = true
		reordered = append(reordered, r.queue[idx])
	}

	r.queue = reordered
	msg := "queue order"
	if params.Order != "" {
		msg += " " + params.Order
	}
	s.broadcastAll(ctx, r, msg)

	return "queue order", nil
}

// Skip advances to the next item. Skips right after an advance are ignored.
func (s *service) Skip(ctx context.Context, conn Conn) (string, error) {
	r, _, err := s.lockParticipant(conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	if len(r.queue) < 2 {
		return "skip deny", nil
	}
	now := s.clock.Now()
	if now.Before(r.skipIgnoreUntil) {
		return "skip ignore", nil
	}

	r.skipIgnoreUntil = now.Add(s.cfg.SkipIgnore)
	s.advance(ctx, r)

	return "skip", nil
}

// SetEnded advances past the playing item once a client reports it ended.
// Reports for an item that is no longer playing are stale.
func (s *service) SetEnded(ctx context.Context, params *SetEndedParams) (string, error) {
	if err := validation.ValidateStructWithContext(ctx, params,
		validation.Field(&params.Item, rules.EndedItemRule...),
	); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	r, _, err := s.lockParticipant(params.Conn)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()

	if len(r.queue) == 0 {
		return "end empty", nil
	}
	head := r.queue[0]
	if head.Id != params.Item && head.sourceURL() != params.Item {
		return "end old", nil
	}

	r.skipIgnoreUntil = s.clock.Now().Add(s.cfg.SkipIgnore)
	s.advance(ctx, r)

	return "end", nil
}

// advance expects r.mu to be held.
func (s *service) advance(ctx context.Context, r *room) {
	r.queue = slices.Delete(r.queue, 0, 1)
	s.clearSyncTimeout(r)
	s.playHead(ctx, r, true)
}

// playHead expects r.mu to be held. It announces queue[0] as the playing item
// and restarts every active participant at its start offset. listed tells
// whether clients know the head as a queue entry.
func (s *service) playHead(ctx context.Context, r *room, listed bool) {
	if len(r.queue) == 0 {
		s.broadcastAll(ctx, r, "video")
		return
	}

	head := r.queue[0]
	if listed {
		s.broadcastAll(ctx, r, "queue rm "+head.Id)
	}

	cmd, ok := head.videoCommand()
	if !ok {
		// announced once resolved
		return
	}
	s.broadcastAll(ctx, r, "video "+mustJSON(cmd))
	r.setActiveState(Playing{StartedAt: s.clock.Now(), Timestamp: head.startOffset()})
}

// retractItem expects r.mu to be held. It drops a failed item; a failed head
// hands playback to the next item.
func (s *service) retractItem(ctx context.Context, r *room, idx int) {
	if idx < 0 {
		return
	}

	item := r.queue[idx]
	r.queue = slices.Delete(r.queue, idx, idx+1)
	if idx > 0 {
		s.broadcastAll(ctx, r, "queue rm "+item.Id)
		return
	}
	if len(r.queue) > 0 {
		s.playHead(ctx, r, true)
	}
}
