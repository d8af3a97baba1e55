package cli

import (
	"fmt"
	"strings"

	"github.com/safecircle/sentinel/internal/models"
)

func renderBar(score float64, width int) string {
	filled := int(score * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatState renders a one-line console view of the monitor
func formatState(state models.MonitorState, total int) string {
	switch state.State {
	case models.StateCountdown:
		remaining := float64(state.Countdown) / float64(total)
		where := "unknown"
		if state.Location != nil {
			where = state.Location.String()
		}
		return fmt.Sprintf("🚨 IMPACT  %s %2ds  at %s  (cancel to dismiss)",
			renderBar(remaining, 30), state.Countdown, where)
	case models.StateMonitoring:
		if !state.SensorAvailable {
			return "⚠️  Monitoring (no motion sensor, detection inactive)"
		}
		return "🟢 Monitoring"
	default:
		return "⚪ Idle"
	}
}

// formatAlert renders an alert for the console
func formatAlert(a models.AccidentAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n📣 ALERT %s (%s)\n", a.AlertID, a.Kind)
	fmt.Fprintf(&b, "   Location: %s\n", a.MapURL)
	if a.Address != "" {
		fmt.Fprintf(&b, "   Address:  %s\n", a.Address)
	}
	for _, c := range a.Contacts {
		fmt.Fprintf(&b, "   Notified: %s %s\n", c.Name, c.Phone)
	}
	fmt.Fprintf(&b, "   Message:  %s\n", a.Message)
	return b.String()
}
