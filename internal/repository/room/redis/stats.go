package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/watchsync/internal/repository/room"
)

const totalsKey = "stats:totals"

func (r repo) getStatsKey(roomId string) string {
	return "room:" + roomId + ":stats"
}

// SaveStats stores the stats of a closed room and folds them into the totals.
func (r repo) SaveStats(ctx context.Context, stats *room.Stats) error {
	statsKey := r.getStatsKey(stats.RoomId)

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, statsKey, *stats)
	pipe.Expire(ctx, statsKey, r.expireDuration)
	pipe.HIncrBy(ctx, totalsKey, "rooms", 1)
	pipe.HIncrBy(ctx, totalsKey, "videos", int64(stats.TotalVideosQueued))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}

	if err := r.maxFieldScript.Run(ctx, r.rc, []string{totalsKey}, "max_concurrent_participants", stats.MaxConcurrentParticipants).Err(); err != nil {
		return fmt.Errorf("failed to update max concurrent participants: %w", err)
	}

	return nil
}

func (r repo) GetStats(ctx context.Context, roomId string) (room.Stats, error) {
	res := r.rc.HGetAll(ctx, r.getStatsKey(roomId))
	if err := res.Err(); err != nil {
		return room.Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	if len(res.Val()) == 0 {
		return room.Stats{}, room.ErrStatsNotFound
	}

	var stats room.Stats
	if err := res.Scan(&stats); err != nil {
		return room.Stats{}, fmt.Errorf("failed to scan stats: %w", err)
	}

	return stats, nil
}

func (r repo) GetTotals(ctx context.Context) (room.Totals, error) {
	var totals room.Totals
	if err := r.rc.HGetAll(ctx, totalsKey).Scan(&totals); err != nil {
		return room.Totals{}, fmt.Errorf("failed to get totals: %w", err)
	}

	return totals, nil
}
