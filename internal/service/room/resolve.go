package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/pkg/ytvideodata"
)

// resolvedItem keeps the id of the placeholder it replaces so that requests
// naming the placeholder stay valid.
func resolvedItem(placeholder *QueueItem, data *ytvideodata.VideoData, favicon string) *QueueItem {
	item := QueueItem{
		Source:           &VideoSource{URL: data.URL, MimeType: data.MimeType},
		OriginalQuery:    placeholder.OriginalQuery,
		StartTimeSeconds: placeholder.StartTimeSeconds,
		Thumbnail:        data.Thumbnail,
		Favicon:          favicon,
		Id:               placeholder.Id,
	}

	if data.StartTimeSeconds != nil {
		item.StartTimeSeconds = data.StartTimeSeconds
	}
	if item.Thumbnail == "" {
		item.Thumbnail = placeholder.Thumbnail
	}
	if item.Favicon == "" {
		item.Favicon = placeholder.Favicon
	}
	if data.Title != "" || data.Series != "" || data.Channel != "" {
		item.Metadata = &VideoMetadata{
			Title:         data.Title,
			Series:        data.Series,
			SeasonNumber:  data.SeasonNumber,
			EpisodeNumber: data.EpisodeNumber,
			Channel:       data.Channel,
		}
	}

	return &item
}

func (s *service) lookup(ctx context.Context, query string) (data *ytvideodata.VideoData, favicon string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panicked: %v", r)
		}
	}()

	data, err = s.videoResolver.Resolve(ctx, query)
	if err != nil {
		return nil, "", err
	}

	return data, s.faviconResolver.Resolve(ctx, faviconPage(query, data.URL)), nil
}

// resolveItem runs on the worker pool. The room may have changed or closed
// while the resolvers ran, so the result is applied only if the item is still
// queued.
func (s *service) resolveItem(ctx context.Context, r *room, conn Conn, itemId, query string) {
	data, favicon, err := s.lookup(ctx, query)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return
	}
	idx := r.itemIndex(itemId)
	if idx < 0 {
		s.logger.DebugContext(ctx, "resolved item is gone", "room_id", r.id, "item_id", itemId)
		return
	}

	if err != nil {
		if errors.Is(err, ytvideodata.ErrVideoNotFound) {
			s.logger.InfoContext(ctx, "video not found", "room_id", r.id, "query", query)
		} else {
			s.logger.WarnContext(ctx, "failed to resolve video", "room_id", r.id, "query", query, "error", err)
		}
		s.retractItem(ctx, r, idx)
		conn.Send("queue err not-found")
		return
	}

	item := resolvedItem(r.queue[idx], data, favicon)
	for i, other := range r.queue {
		if i != idx && item.sourceURL() == other.sourceURL() {
			s.retractItem(ctx, r, idx)
			conn.Send("queue err duplicate")
			return
		}
	}

	announced := idx == 0 && r.queue[idx].Source != nil
	r.queue[idx] = item
	if announced {
		// clients already play the fallback source
		return
	}
	if idx == 0 {
		s.clearSyncTimeout(r)
		s.playHead(ctx, r, false)
		return
	}
	s.broadcastAll(ctx, r, "queue add "+mustJSON(item))
}
