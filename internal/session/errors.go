package session

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect while a session is being
	// established or is open.
	ErrAlreadyConnected = errors.New("session: already connected")

	// ErrNotConnected is returned by SendAudio when no session is open or
	// pending.
	ErrNotConnected = errors.New("session: not connected")

	// ErrSendQueueFull is returned by SendAudio when the outbound queue is
	// full while a connection attempt is still in flight.
	ErrSendQueueFull = errors.New("session: send queue full")
)
