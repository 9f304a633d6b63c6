package room

import "errors"

var (
	ErrRoomFull       = errors.New("room full")
	ErrRoomClosed     = errors.New("room closed")
	ErrNotJoined      = errors.New("session has not joined the room")
	ErrUnknownSession = errors.New("unknown session")
)
