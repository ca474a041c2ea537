package room

import "errors"

var (
	ErrStatsNotFound = errors.New("room stats not found")
)
