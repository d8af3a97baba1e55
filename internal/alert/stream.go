package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/safecircle/sentinel/internal/models"
)

// DefaultStream is the Redis stream alerts are appended to
const DefaultStream = "sentinel:alerts"

// StreamNotifier appends alerts to a Redis stream for downstream dispatchers
type StreamNotifier struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewStreamNotifier writes to stream, trimming it to roughly maxLen entries
// when maxLen is positive
func NewStreamNotifier(client redis.Cmdable, stream string, maxLen int64) *StreamNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamNotifier{client: client, stream: stream, maxLen: maxLen}
}

func (n *StreamNotifier) Name() string { return "redis-stream" }

func (n *StreamNotifier) Notify(ctx context.Context, alert models.AccidentAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"alert_id": alert.AlertID,
			"kind":     alert.Kind,
			"payload":  string(payload),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}

	if err := n.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}
