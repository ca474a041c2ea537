package room

// Stats is the record kept for a room after it is torn down.
type Stats struct {
	RoomId                    string `redis:"room_id" json:"room_id"`
	MaxConcurrentParticipants int    `redis:"max_concurrent_participants" json:"max_concurrent_participants"`
	TotalVideosQueued         int    `redis:"total_videos_queued" json:"total_videos_queued"`
	CreatedAt                 int64  `redis:"created_at" json:"created_at"`
	ClosedAt                  int64  `redis:"closed_at" json:"closed_at"`
}

// Totals aggregates Stats over every recorded room.
type Totals struct {
	Rooms                     int64 `redis:"rooms" json:"rooms"`
	Videos                    int64 `redis:"videos" json:"videos"`
	MaxConcurrentParticipants int64 `redis:"max_concurrent_participants" json:"max_concurrent_participants"`
}
