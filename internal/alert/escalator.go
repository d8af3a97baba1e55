// Package alert turns an escalation into an accident alert and fans it out
// to the configured notification channels.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safecircle/sentinel/internal/location"
	"github.com/safecircle/sentinel/internal/logger"
	"github.com/safecircle/sentinel/internal/models"
)

// ErrNoLocation is returned by SOS when no position fix can be obtained.
var ErrNoLocation = errors.New("unable to determine current location")

// Notifier delivers an alert over one channel
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert models.AccidentAlert) error
}

// Contact is an emergency contact
type Contact struct {
	Name         string `mapstructure:"name" yaml:"name"`
	Phone        string `mapstructure:"phone" yaml:"phone"`
	Relationship string `mapstructure:"relationship" yaml:"relationship"`
	PushToken    string `mapstructure:"push_token" yaml:"push_token"`
}

// Options configures an Escalator
type Options struct {
	Contacts []Contact
	// Geocoder resolves a street address for the alert; optional.
	Geocoder location.Geocoder
	// Locator supplies the position for manual SOS alerts.
	Locator location.Provider
	// ImpactTime reports when the escalated impact happened; optional.
	ImpactTime func() *time.Time
	// NotifyTimeout bounds each notifier. Default 20s.
	NotifyTimeout time.Duration
	Logger        *zap.Logger
}

// Escalator builds alerts and delivers them through every notifier
type Escalator struct {
	notifiers  []Notifier
	contacts   []models.AlertContact
	geocoder   location.Geocoder
	locator    location.Provider
	impactTime func() *time.Time
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewEscalator creates an escalator delivering to notifiers
func NewEscalator(opts Options, notifiers ...Notifier) *Escalator {
	timeout := opts.NotifyTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	contacts := make([]models.AlertContact, 0, len(opts.Contacts))
	for _, c := range opts.Contacts {
		contacts = append(contacts, models.AlertContact{
			Name:         c.Name,
			Phone:        c.Phone,
			Relationship: c.Relationship,
			PushToken:    c.PushToken,
		})
	}

	return &Escalator{
		notifiers:  notifiers,
		contacts:   contacts,
		geocoder:   opts.Geocoder,
		locator:    opts.Locator,
		impactTime: opts.ImpactTime,
		timeout:    timeout,
		logger:     logger.OrNop(opts.Logger),
		now:        time.Now,
	}
}

// OnAccident is the escalation callback handed to the detector. Delivery
// failures are logged; the detector is never affected by them.
func (e *Escalator) OnAccident(p location.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout+5*time.Second)
	defer cancel()

	var impactAt *time.Time
	if e.impactTime != nil {
		impactAt = e.impactTime()
	}

	alert := e.BuildAlert(ctx, models.AlertKindCrash, p, impactAt)
	if err := e.Escalate(ctx, alert); err != nil {
		e.logger.Error("accident alert delivery incomplete",
			zap.String("alert_id", alert.AlertID),
			zap.Error(err))
	}
}

// SOS sends a manual alert from the current position
func (e *Escalator) SOS(ctx context.Context) (models.AccidentAlert, error) {
	if e.locator == nil {
		return models.AccidentAlert{}, ErrNoLocation
	}
	p, err := e.locator.CurrentPosition(ctx)
	if err != nil {
		return models.AccidentAlert{}, fmt.Errorf("%w: %v", ErrNoLocation, err)
	}

	alert := e.BuildAlert(ctx, models.AlertKindSOS, p, nil)
	return alert, e.Escalate(ctx, alert)
}

// BuildAlert assembles the alert payload for a position
func (e *Escalator) BuildAlert(ctx context.Context, kind string, p location.Point, impactAt *time.Time) models.AccidentAlert {
	alert := models.AccidentAlert{
		Schema:       models.AlertSchema,
		AlertID:      uuid.New().String(),
		Kind:         kind,
		CreatedAtUTC: e.now().UTC().Format(time.RFC3339),
		Location:     p,
		MapURL:       location.MapURL(p),
		Contacts:     e.contacts,
	}
	if impactAt != nil {
		alert.ImpactAtUTC = impactAt.UTC().Format(time.RFC3339)
	}

	if e.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		address, err := e.geocoder.ReverseGeocode(gctx, p)
		cancel()
		if err != nil {
			e.logger.Warn("reverse geocoding failed", zap.Error(err))
		} else {
			alert.Address = address
		}
	}

	alert.Message = message(alert)
	return alert
}

func message(a models.AccidentAlert) string {
	where := a.MapURL
	if a.Address != "" {
		where = fmt.Sprintf("%s (%s)", a.Address, a.MapURL)
	}
	if a.Kind == models.AlertKindSOS {
		return fmt.Sprintf("EMERGENCY SOS: I need help. My location: %s", where)
	}
	return fmt.Sprintf("EMERGENCY: A severe impact was detected and there was no response. Last known location: %s", where)
}

// Escalate validates the alert and delivers it through every notifier
// concurrently. Failures are joined; one notifier failing does not stop
// the others.
func (e *Escalator) Escalate(ctx context.Context, alert models.AccidentAlert) error {
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	e.logger.Warn("escalating alert",
		zap.String("alert_id", alert.AlertID),
		zap.String("kind", alert.Kind),
		zap.String("map_url", alert.MapURL),
		zap.Int("notifiers", len(e.notifiers)))

	errs := make([]error, len(e.notifiers))
	var wg sync.WaitGroup
	for i, n := range e.notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			nctx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			if err := n.Notify(nctx, alert); err != nil {
				e.logger.Error("notifier failed", zap.String("notifier", n.Name()), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", n.Name(), err)
				return
			}
			e.logger.Debug("notifier delivered", zap.String("notifier", n.Name()))
		}(i, n)
	}
	wg.Wait()

	return errors.Join(errs...)
}
