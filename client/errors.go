package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned synchronously by operations that need an
	// established connection.
	ErrNotConnected = errors.New("not connected")

	// ErrNoRoom is returned synchronously by operations that need a joined
	// room, before any network interaction.
	ErrNoRoom = errors.New("no room joined")

	// ErrAckTimeout is returned when an acknowledged operation sees neither
	// an ack nor an error within the ack ceiling. Distinguishable from a
	// server-reported failure, which is a *ServerError.
	ErrAckTimeout = errors.New("acknowledgment timeout")

	// ErrConnectInProgress is returned by Connect while a handshake is
	// already underway.
	ErrConnectInProgress = errors.New("connect already in progress")
)

// ServerError carries an error event reported by the hub.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error [%s]: %s", e.Code, e.Message)
	}
	return "server error: " + e.Message
}
