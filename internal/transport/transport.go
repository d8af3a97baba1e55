// Package transport pushes monitor frames to UI clients over WebSocket, SSE
// and UDP.
package transport

import (
	"context"
	"errors"

	"github.com/safecircle/sentinel/internal/models"
)

// Broadcaster is implemented by every frame transport
type Broadcaster interface {
	Start(ctx context.Context) error
	Broadcast(frame models.Frame) error
	BroadcastFromChannel(ctx context.Context, frames <-chan models.Frame) error
	GetClientCount() int
	GetAddress() string
}

// ErrUnknownCommand is returned by a CommandHandler for commands it does
// not recognise.
var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler executes control commands received from clients
type CommandHandler interface {
	HandleCommand(ctx context.Context, command string) (models.MonitorState, error)
	Snapshot() models.MonitorState
}

var (
	_ Broadcaster = (*WebSocketServer)(nil)
	_ Broadcaster = (*SSEServer)(nil)
	_ Broadcaster = (*UDPServer)(nil)
)
