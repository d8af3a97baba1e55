package alert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
	"github.com/safecircle/sentinel/internal/recorder"
	"github.com/safecircle/sentinel/internal/sms"
)

// ErrNoRecipients is returned by a notifier that has nobody to address.
var ErrNoRecipients = errors.New("no recipients configured")

// SMSNotifier texts the alert to every contact with a phone number
type SMSNotifier struct {
	provider sms.Provider
	logger   *zap.Logger
}

func NewSMSNotifier(provider sms.Provider, log *zap.Logger) *SMSNotifier {
	return &SMSNotifier{provider: provider, logger: logger.OrNop(log)}
}

func (n *SMSNotifier) Name() string { return "sms:" + n.provider.Name() }

func (n *SMSNotifier) Notify(ctx context.Context, alert models.AccidentAlert) error {
	var errs []error
	sent := 0
	for _, c := range alert.Contacts {
		if c.Phone == "" {
			continue
		}
		resp, err := n.provider.SendSMS(ctx, &sms.Request{
			To:      c.Phone,
			Message: alert.Message,
			Type:    "transactional",
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", c.Name, err))
			continue
		}
		sent++
		n.logger.Info("alert texted",
			zap.String("contact", c.Name),
			zap.String("message_id", resp.MessageID),
			zap.String("status", resp.Status))
	}
	if sent == 0 && len(errs) == 0 {
		return ErrNoRecipients
	}
	return errors.Join(errs...)
}

// BroadcastNotifier pushes the alert as a frame to connected UI clients
type BroadcastNotifier struct {
	frames chan<- models.Frame
}

func NewBroadcastNotifier(frames chan<- models.Frame) *BroadcastNotifier {
	return &BroadcastNotifier{frames: frames}
}

func (n *BroadcastNotifier) Name() string { return "broadcast" }

func (n *BroadcastNotifier) Notify(ctx context.Context, alert models.AccidentAlert) error {
	select {
	case n.frames <- models.NewFrame(models.FrameAlert, alert):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordNotifier appends the alert to an NDJSON log
type RecordNotifier struct {
	recorder *recorder.Recorder
}

func NewRecordNotifier(rec *recorder.Recorder) *RecordNotifier {
	return &RecordNotifier{recorder: rec}
}

func (n *RecordNotifier) Name() string { return "record" }

func (n *RecordNotifier) Notify(_ context.Context, alert models.AccidentAlert) error {
	if err := n.recorder.RecordJSON(alert); err != nil {
		return err
	}
	return n.recorder.Flush()
}

// LogNotifier writes the alert to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.OrNop(log)}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, alert models.AccidentAlert) error {
	names := make([]string, 0, len(alert.Contacts))
	for _, c := range alert.Contacts {
		names = append(names, c.Name)
	}
	n.logger.Error("ACCIDENT ALERT",
		zap.String("alert_id", alert.AlertID),
		zap.String("kind", alert.Kind),
		zap.Float64("latitude", alert.Location.Latitude),
		zap.Float64("longitude", alert.Location.Longitude),
		zap.String("address", alert.Address),
		zap.String("map_url", alert.MapURL),
		zap.Strings("contacts", names),
		zap.String("message", alert.Message))
	return nil
}
