package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/encoding"
	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
)

// WebSocketPath is the monitor endpoint served by WebSocketServer
const WebSocketPath = "/v1/monitor/ws"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(messageType, data)
}

// WebSocketServer broadcasts frames to WebSocket clients and accepts
// control commands from them
type WebSocketServer struct {
	host        string
	port        int
	encoder     encoding.Encoder
	messageType int
	handler     CommandHandler
	logger      *zap.Logger
	clients     map[*websocket.Conn]*wsClient
	mu          sync.RWMutex
	server      *http.Server
}

// NewWebSocketServer creates a new WebSocket server. handler may be nil, in
// which case clients only receive frames.
func NewWebSocketServer(host string, port int, encoder encoding.Encoder, handler CommandHandler, log *zap.Logger) *WebSocketServer {
	if encoder == nil {
		encoder = encoding.NewJSONEncoder()
	}
	messageType := websocket.TextMessage
	if encoder.ContentType() != "application/json" {
		messageType = websocket.BinaryMessage
	}
	return &WebSocketServer{
		host:        host,
		port:        port,
		encoder:     encoder,
		messageType: messageType,
		handler:     handler,
		logger:      logger.OrNop(log),
		clients:     make(map[*websocket.Conn]*wsClient),
	}
}

// Handler returns the HTTP handler serving the WebSocket endpoint
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start starts the WebSocket server and blocks until ctx is cancelled
func (s *WebSocketServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("websocket server listening", zap.String("address", s.GetAddress()))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("websocket server failed: %w", err)
		}
		return nil
	}
}

// handleRoot provides info at the root endpoint
func (s *WebSocketServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Sentinel accident monitor\n\n")
	fmt.Fprintf(w, "WebSocket endpoint: %s\n", s.GetAddress())
	fmt.Fprintf(w, "Connected clients: %d\n", s.GetClientCount())
}

// handleWebSocket handles WebSocket connections
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[conn] = client
	clientCount := len(s.clients)
	s.mu.Unlock()

	s.logger.Info("websocket client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("clients", clientCount))

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()

		conn.Close()
		s.logger.Info("websocket client disconnected", zap.Int("clients", clientCount))
	}()

	if s.handler != nil {
		s.send(client, models.NewFrame(models.FrameState, s.handler.Snapshot()))
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.send(client, models.NewFrame(models.FrameCommand, s.execute(r.Context(), data)))
	}
}

// execute runs one client command message
func (s *WebSocketServer) execute(ctx context.Context, data []byte) models.CommandResult {
	var cmd models.Command
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.Command == "" {
		return models.CommandResult{Error: "malformed command"}
	}

	result := models.CommandResult{Command: cmd.Command}
	if s.handler == nil {
		result.Error = "commands are not accepted on this server"
		return result
	}

	state, err := s.handler.HandleCommand(ctx, cmd.Command)
	if err != nil {
		s.logger.Warn("command failed", zap.String("command", cmd.Command), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	result.OK = true
	result.State = &state
	return result
}

func (s *WebSocketServer) send(client *wsClient, frame models.Frame) {
	data, err := s.encoder.Encode(frame)
	if err != nil {
		s.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	if err := client.write(s.messageType, data); err != nil {
		s.logger.Debug("failed to send to client", zap.Error(err))
	}
}

// Broadcast sends a frame to all connected clients
func (s *WebSocketServer) Broadcast(frame models.Frame) error {
	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(s.messageType, data); err != nil {
			// Client will be cleaned up by the connection handler
			s.logger.Debug("failed to send to client", zap.Error(err))
		}
	}

	return nil
}

// BroadcastFromChannel reads frames from a channel and broadcasts them
func (s *WebSocketServer) BroadcastFromChannel(ctx context.Context, frames <-chan models.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil // Channel closed
			}
			if err := s.Broadcast(frame); err != nil {
				s.logger.Warn("broadcast error", zap.Error(err))
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *WebSocketServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown gracefully shuts down the server
func (s *WebSocketServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]*wsClient)
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address
func (s *WebSocketServer) GetAddress() string {
	return fmt.Sprintf("ws://%s:%d%s", s.host, s.port, WebSocketPath)
}
