// Package receiver exposes the HTTP surface of the monitor: motion sample
// ingest from a device, plus state and control endpoints for a UI.
package receiver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/detector"
	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/motion"
	"github.com/safecircle/sentinel/internal/transport"
)

const (
	// SamplesPath accepts SampleBatch uploads
	SamplesPath = "/v1/motion/samples"
	// MonitorPath serves the monitor state and its control commands
	MonitorPath = "/v1/monitor"

	maxBodySize = 10 * 1024 * 1024
)

// SampleSink receives decoded samples. motion.ChannelSource implements it.
type SampleSink interface {
	// PushAll enqueues the whole batch or nothing, reporting which.
	PushAll(samples []motion.Sample) bool
}

// Config holds the receiver server configuration
type Config struct {
	Host       string
	Port       int
	Token      string
	AcceptGzip bool
}

// Server is the HTTP receiver server
type Server struct {
	config     Config
	sink       SampleSink
	handler    transport.CommandHandler
	writer     Writer
	idempotent IdempotencyStore
	logger     *zap.Logger
	server     *http.Server
	mu         sync.RWMutex
	stats      Stats
}

// Stats holds server statistics
type Stats struct {
	TotalReceived   int
	TotalDuplicates int
	TotalErrors     int
	SamplesAccepted int
	SamplesDropped  int
}

// Option configures a Server
type Option func(*Server)

// WithWriter archives every accepted batch
func WithWriter(w Writer) Option {
	return func(s *Server) { s.writer = w }
}

// WithIdempotencyStore replaces the in-memory duplicate tracker
func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(s *Server) { s.idempotent = store }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = logger.OrNop(l) }
}

// NewServer creates a receiver. sink may be nil when the monitor is fed
// from another source; handler may be nil when no control surface is wanted.
func NewServer(config Config, sink SampleSink, handler transport.CommandHandler, opts ...Option) *Server {
	s := &Server{
		config:     config,
		sink:       sink,
		handler:    handler,
		idempotent: NewMemoryStore(24 * time.Hour),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes of the receiver
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SamplesPath, s.handleSamples)
	mux.HandleFunc("GET "+MonitorPath, s.handleState)
	mux.HandleFunc("POST "+MonitorPath+"/{command}", s.handleCommand)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start starts the receiver server
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("receiver listening", zap.String("address", s.GetAddress()))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address
func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// GetStats returns current server statistics
func (s *Server) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service":  "sentinel-receiver",
		"version":  "1.0.0",
		"samples":  SamplesPath,
		"monitor":  MonitorPath,
		"commands": "start|stop|cancel|sos",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.validateAuth(r) {
		s.countError()
		s.writeError(w, http.StatusUnauthorized, "invalid or missing authorization token")
		return
	}

	if s.sink == nil {
		s.writeError(w, http.StatusServiceUnavailable, "sample ingest is not enabled")
		return
	}

	if err := s.validateHeaders(r); err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := s.readBody(r)
	if err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	var batch models.SampleBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := batch.Validate(); err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, "schema validation failed: "+err.Error())
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = r.Header.Get("X-Sentinel-Batch-Id")
	}
	if key == "" {
		key = batch.BatchID
	}

	fresh, err := s.idempotent.MarkIfNew(r.Context(), key)
	if err != nil {
		// fail closed: a retried batch must never reach the monitor twice
		s.countError()
		s.logger.Error("idempotency store unavailable", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
		return
	}

	accepted := 0
	if fresh {
		if !s.feed(&batch) {
			// nothing was queued, so the retry must not be treated as a duplicate
			if err := s.idempotent.Forget(r.Context(), key); err != nil {
				s.logger.Error("failed to release batch id", zap.String("batch_id", batch.BatchID), zap.Error(err))
			}
			s.mu.Lock()
			s.stats.TotalReceived++
			s.stats.TotalErrors++
			s.stats.SamplesDropped += len(batch.Samples)
			s.mu.Unlock()

			s.logger.Warn("sample buffer full, batch rejected",
				zap.String("batch_id", batch.BatchID),
				zap.Int("samples", len(batch.Samples)))
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusServiceUnavailable, "sample buffer full, retry the batch")
			return
		}
		accepted = len(batch.Samples)
		if s.writer != nil {
			if err := s.writer.Write(&batch); err != nil {
				s.logger.Warn("failed to archive batch", zap.String("batch_id", batch.BatchID), zap.Error(err))
			}
		}
	}

	s.mu.Lock()
	s.stats.TotalReceived++
	if !fresh {
		s.stats.TotalDuplicates++
	}
	s.stats.SamplesAccepted += accepted
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"receipt": models.NewBatchReceipt(&batch, !fresh),
	})
}

// feed pushes the batch samples to the sink in upload order, all or none
func (s *Server) feed(batch *models.SampleBatch) bool {
	samples := make([]motion.Sample, 0, len(batch.Samples))
	for _, bs := range batch.Samples {
		at, _ := time.Parse(time.RFC3339Nano, bs.TS)
		samples = append(samples, motion.Sample{X: bs.X, Y: bs.Y, Z: bs.Z, At: at})
	}
	return s.sink.PushAll(samples)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !s.validateAuth(r) {
		s.writeError(w, http.StatusUnauthorized, "invalid or missing authorization token")
		return
	}
	if s.handler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "monitor control is not enabled")
		return
	}
	s.writeJSON(w, http.StatusOK, s.handler.Snapshot())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !s.validateAuth(r) {
		s.writeError(w, http.StatusUnauthorized, "invalid or missing authorization token")
		return
	}
	if s.handler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "monitor control is not enabled")
		return
	}

	command := r.PathValue("command")
	state, err := s.handler.HandleCommand(r.Context(), command)
	result := models.CommandResult{Command: command, State: &state}
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("command failed", zap.String("command", command), zap.Error(err))
		s.writeJSON(w, commandStatus(err), result)
		return
	}
	result.OK = true
	s.writeJSON(w, http.StatusOK, result)
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, detector.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, detector.ErrClosed), errors.Is(err, detector.ErrStartAborted):
		return http.StatusConflict
	case errors.Is(err, transport.ErrUnknownCommand):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) validateAuth(r *http.Request) bool {
	if s.config.Token == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return false
	}

	return parts[1] == s.config.Token
}

func (s *Server) validateHeaders(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return fmt.Errorf("Content-Type must be application/json")
	}

	schema := r.Header.Get("X-Sentinel-Schema")
	if schema != "" && schema != models.BatchSchema {
		return fmt.Errorf("unsupported schema version: %s", schema)
	}

	return nil
}

func (s *Server) readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = r.Body

	if r.Header.Get("Content-Encoding") == "gzip" {
		if !s.config.AcceptGzip {
			return nil, fmt.Errorf("gzip payloads are not accepted")
		}
		gzReader, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}

func (s *Server) countError() {
	s.mu.Lock()
	s.stats.TotalErrors++
	s.mu.Unlock()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
