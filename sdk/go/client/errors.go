package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed      = errors.New("client is closed")
	ErrNotConnected      = errors.New("client is not connected")
	ErrAlreadyConnected  = errors.New("client is already connected")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrInvalidConfig     = errors.New("invalid client configuration")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrRejected          = errors.New("rejected by server")
)
