package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already bound to a room")
	ErrNotFound      = errors.New("connection not found")
)
