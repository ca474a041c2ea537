package room

type JoinRoomParams struct {
	Conn   Conn
	RoomId string
}

type CoordinatePlayParams struct {
	Conn      Conn
	Timestamp float64
	IsPlaying bool
}

// PlaybackParams carries a client reported position for ready, pause and buffer.
type PlaybackParams struct {
	Conn      Conn
	Timestamp float64
}

type SetEndedParams struct {
	Conn Conn
	// Item is the id or the source url of the item that ended.
	Item string
}

type EnqueueParams struct {
	Conn  Conn
	Query string
}

type DequeueParams struct {
	Conn   Conn
	ItemId string
}

type ReorderParams struct {
	Conn  Conn
	Order string
}
