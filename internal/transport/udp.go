package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/encoding"
	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
)

// UDPServer broadcasts frames to clients that registered with a datagram
type UDPServer struct {
	host    string
	port    int
	encoder encoding.Encoder
	logger  *zap.Logger
	conn    *net.UDPConn
	clients map[string]*net.UDPAddr
	mu      sync.RWMutex
}

// NewUDPServer creates a new UDP server
func NewUDPServer(host string, port int, encoder encoding.Encoder, log *zap.Logger) *UDPServer {
	if encoder == nil {
		encoder = encoding.NewJSONEncoder()
	}
	return &UDPServer{
		host:    host,
		port:    port,
		encoder: encoder,
		logger:  logger.OrNop(log),
		clients: make(map[string]*net.UDPAddr),
	}
}

// Start starts the UDP server
func (s *UDPServer) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("failed to resolve address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("udp server listening", zap.String("address", s.GetAddress()))

	go s.readLoop(ctx, conn)

	<-ctx.Done()
	return s.Shutdown()
}

// readLoop listens for client registration packets
func (s *UDPServer) readLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				continue
			}

			s.handleMessage(string(buf[:n]), addr)
		}
	}
}

func (s *UDPServer) handleMessage(msg string, addr *net.UDPAddr) {
	key := addr.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg {
	case "subscribe":
		s.clients[key] = addr
		s.logger.Info("udp client subscribed", zap.String("client", key), zap.Int("clients", len(s.clients)))
	case "unsubscribe":
		delete(s.clients, key)
		s.logger.Info("udp client unsubscribed", zap.String("client", key), zap.Int("clients", len(s.clients)))
	default:
		// Any message registers client
		if _, exists := s.clients[key]; !exists {
			s.clients[key] = addr
			s.logger.Info("udp client registered", zap.String("client", key), zap.Int("clients", len(s.clients)))
		}
	}
}

// Broadcast sends a frame to all registered clients
func (s *UDPServer) Broadcast(frame models.Frame) error {
	if s.GetClientCount() == 0 {
		return nil
	}

	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return nil
	}
	for key, addr := range s.clients {
		if _, err := s.conn.WriteToUDP(data, addr); err != nil {
			s.logger.Debug("udp write failed", zap.String("client", key), zap.Error(err))
		}
	}
	return nil
}

// BroadcastFromChannel reads frames and broadcasts them
func (s *UDPServer) BroadcastFromChannel(ctx context.Context, frames <-chan models.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := s.Broadcast(frame); err != nil {
				s.logger.Warn("broadcast error", zap.Error(err))
			}
		}
	}
}

// GetClientCount returns registered client count
func (s *UDPServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes the UDP connection
func (s *UDPServer) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// GetAddress returns the server address
func (s *UDPServer) GetAddress() string {
	return fmt.Sprintf("udp://%s:%d", s.host, s.port)
}
