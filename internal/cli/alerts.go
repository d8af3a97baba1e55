package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/alert"
	"github.com/safecircle/sentinel/internal/config"
	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/recorder"
	"github.com/safecircle/sentinel/internal/sms"
)

// alertStack is everything alert delivery needs, built from config
type alertStack struct {
	options   alert.Options
	notifiers []alert.Notifier
	redis     *redis.Client
	closers   []func() error
}

func (s *alertStack) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Warn("failed to close alert resource", zap.Error(err))
		}
	}
}

// buildAlertStack wires the notifiers enabled in cfg. The log notifier is
// always present.
func buildAlertStack(ctx context.Context, cfg *config.Config) (*alertStack, error) {
	stack := &alertStack{
		options: alert.Options{
			Contacts:      cfg.Contacts,
			NotifyTimeout: cfg.Alerts.NotifyTimeout,
			Logger:        log.Named("alert"),
		},
		notifiers: []alert.Notifier{alert.NewLogNotifier(log.Named("alert"))},
	}

	if cfg.Geocode.APIKey != "" {
		geocoder, err := location.NewGoogleGeocoder(cfg.Geocode.APIKey)
		if err != nil {
			return nil, err
		}
		stack.options.Geocoder = geocoder
	}

	provider, err := buildSMSProvider(ctx, cfg.SMS)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		stack.notifiers = append(stack.notifiers, alert.NewSMSNotifier(provider, log.Named("sms")))
	}

	if cfg.Push.CredentialsFile != "" {
		push, err := alert.NewPushNotifier(ctx, cfg.Push.CredentialsFile, log.Named("push"))
		if err != nil {
			return nil, err
		}
		stack.notifiers = append(stack.notifiers, push)
	}

	if cfg.Redis.Addr != "" {
		stack.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stack.closers = append(stack.closers, stack.redis.Close)
		stack.notifiers = append(stack.notifiers, alert.NewStreamNotifier(stack.redis, cfg.Redis.Stream, cfg.Redis.MaxLen))
	}

	if cfg.Alerts.LogFile != "" {
		rec, err := recorder.NewAppendRecorder(cfg.Alerts.LogFile)
		if err != nil {
			stack.Close()
			return nil, err
		}
		stack.closers = append(stack.closers, rec.Close)
		stack.notifiers = append(stack.notifiers, alert.NewRecordNotifier(rec))
	}

	return stack, nil
}

func buildSMSProvider(ctx context.Context, cfg config.SMSConfig) (sms.Provider, error) {
	switch cfg.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From), nil
	case "sns":
		provider, err := sms.NewSNSProvider(ctx, cfg.SNS.Region, cfg.SNS.SenderID)
		if err != nil {
			return nil, fmt.Errorf("failed to create SNS provider: %w", err)
		}
		return provider, nil
	default:
		return nil, nil
	}
}

// buildLocator returns the position provider: a route when given, else the
// configured fixed point
func buildLocator(cfg *config.Config, route string) (location.Provider, error) {
	if route != "" {
		points, err := parseRoute(route)
		if err != nil {
			return nil, err
		}
		return location.NewRoute(points...)
	}
	return location.NewStatic(cfg.Point(), location.Permission(cfg.Location.Permission)), nil
}

func notifierNames(notifiers []alert.Notifier) []string {
	names := make([]string, 0, len(notifiers))
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	return names
}
