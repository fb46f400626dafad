package ws

import "errors"

var (
	// ErrConnectionClosed is returned for sends on a closed connection.
	ErrConnectionClosed = errors.New("ws: connection closed")
	// ErrSendBufferFull is returned when a client stops draining its
	// socket and its outbound queue fills up.
	ErrSendBufferFull = errors.New("ws: send buffer full")
)
