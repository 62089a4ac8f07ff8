package websocket

import "errors"

// Connection errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrBufferFull       = errors.New("outbound buffer full")
)

// Directory errors
var (
	ErrNilHandle   = errors.New("handle cannot be nil")
	ErrEmptyName   = errors.New("name cannot be empty")
	ErrUnknownRole = errors.New("unknown role")
)
