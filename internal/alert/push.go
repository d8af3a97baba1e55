package alert

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
)

// messagingClient is the part of the FCM client the notifier uses
type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier sends the alert as a high-priority FCM notification to every
// contact with a registered device token
type PushNotifier struct {
	client messagingClient
	logger *zap.Logger
}

// NewPushNotifier initializes Firebase from a service account file
func NewPushNotifier(ctx context.Context, credentialsFile string, log *zap.Logger) (*PushNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &PushNotifier{client: client, logger: logger.OrNop(log)}, nil
}

func (n *PushNotifier) Name() string { return "push" }

func (n *PushNotifier) Notify(ctx context.Context, alert models.AccidentAlert) error {
	var errs []error
	sent := 0
	for _, c := range alert.Contacts {
		if c.PushToken == "" {
			continue
		}
		id, err := n.client.Send(ctx, buildMessage(c.PushToken, alert))
		if err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", c.Name, err))
			continue
		}
		sent++
		n.logger.Info("alert pushed", zap.String("contact", c.Name), zap.String("message_id", id))
	}
	if sent == 0 && len(errs) == 0 {
		return ErrNoRecipients
	}
	return errors.Join(errs...)
}

func buildMessage(token string, alert models.AccidentAlert) *messaging.Message {
	title := "Accident detected"
	if alert.Kind == models.AlertKindSOS {
		title = "Emergency SOS"
	}

	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  alert.Message,
		},
		Data: map[string]string{
			"alert_id":  alert.AlertID,
			"kind":      alert.Kind,
			"latitude":  fmt.Sprintf("%f", alert.Location.Latitude),
			"longitude": fmt.Sprintf("%f", alert.Location.Longitude),
			"map_url":   alert.MapURL,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "emergency",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}
