package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/safecircle/sentinel/internal/config"
	"github.com/safecircle/sentinel/internal/receiver"
	"github.com/safecircle/sentinel/internal/transport"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and print connection info",
	Long:  `Validates the configuration, checks port availability and external services, and prints client connection examples.`,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "🏥 Sentinel Environment Check")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Go Version:        %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	// Scenarios
	if registry, err := loadScenarios(); err == nil {
		fmt.Fprintf(out, "✅ %d scenarios available: %v\n", len(registry.List()), registry.List())
	} else {
		fmt.Fprintf(out, "❌ Scenarios: %v\n", err)
	}
	if dir := getScenarioDir(); dir != "" {
		fmt.Fprintf(out, "   Custom scenarios from: %s\n", dir)
	}
	fmt.Fprintln(out)

	checkAlerting(out, cfg)

	// Ports
	ports := []struct {
		name string
		host string
		port int
	}{
		{"WebSocket", cfg.Transport.Host, cfg.Transport.WSPort},
		{"SSE", cfg.Transport.Host, cfg.Transport.SSEPort},
		{"HTTP", cfg.Receiver.Host, cfg.Receiver.Port},
	}
	for _, p := range ports {
		if isPortAvailable(p.host, p.port) {
			fmt.Fprintf(out, "✅ %s port %d is available\n", p.name, p.port)
		} else {
			fmt.Fprintf(out, "⚠️  %s port %d is in use (set it in the config file)\n", p.name, p.port)
		}
	}
	fmt.Fprintln(out)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		client.Close()
		if err != nil {
			fmt.Fprintf(out, "❌ Redis %s unreachable: %v\n\n", cfg.Redis.Addr, err)
		} else {
			fmt.Fprintf(out, "✅ Redis %s reachable\n\n", cfg.Redis.Addr)
		}
	}

	printConnectionExamples(out, cfg)

	fmt.Fprintln(out, "✅ Environment check complete")
	return nil
}

func checkAlerting(out io.Writer, cfg *config.Config) {
	if len(cfg.Contacts) == 0 {
		fmt.Fprintln(out, "⚠️  No emergency contacts configured, alerts will only be logged")
	} else {
		fmt.Fprintf(out, "✅ %d emergency contacts configured\n", len(cfg.Contacts))
	}

	switch cfg.SMS.Provider {
	case "twilio":
		fmt.Fprintf(out, "✅ SMS via Twilio from %s\n", cfg.SMS.Twilio.From)
	case "sns":
		fmt.Fprintf(out, "✅ SMS via AWS SNS in %s\n", cfg.SMS.SNS.Region)
	default:
		fmt.Fprintln(out, "⚠️  SMS disabled")
	}

	if cfg.Push.CredentialsFile != "" {
		if _, err := os.Stat(cfg.Push.CredentialsFile); err != nil {
			fmt.Fprintf(out, "❌ Push credentials not readable: %v\n", err)
		} else {
			fmt.Fprintf(out, "✅ Push via Firebase (%s)\n", cfg.Push.CredentialsFile)
		}
	}

	if cfg.Geocode.APIKey != "" {
		fmt.Fprintln(out, "✅ Reverse geocoding enabled")
	}
	fmt.Fprintln(out)
}

func printConnectionExamples(out io.Writer, cfg *config.Config) {
	ws := fmt.Sprintf("ws://localhost:%d%s", cfg.Transport.WSPort, transport.WebSocketPath)
	api := fmt.Sprintf("http://localhost:%d", cfg.Receiver.Port)

	fmt.Fprintln(out, "📡 Connection Examples:")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "JavaScript (state frames + cancel button):")
	fmt.Fprintf(out, "  const ws = new WebSocket('%s');\n", ws)
	fmt.Fprintln(out, "  ws.onmessage = (e) => console.log(JSON.parse(e.data));")
	fmt.Fprintln(out, "  ws.send(JSON.stringify({command: 'cancel'}));")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "curl (control):")
	fmt.Fprintf(out, "  curl -H 'Authorization: Bearer $TOKEN' %s%s\n", api, receiver.MonitorPath)
	fmt.Fprintf(out, "  curl -X POST -H 'Authorization: Bearer $TOKEN' %s%s/cancel\n", api, receiver.MonitorPath)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "curl (push samples, --source ingest):")
	fmt.Fprintf(out, "  curl -X POST -H 'Authorization: Bearer $TOKEN' -H 'Content-Type: application/json' \\\n")
	fmt.Fprintf(out, "    -d '{\"schema\":\"sentinel.motion.batch.v1\",\"batch_id\":\"b1\",\"device\":{\"id\":\"p1\"},\"samples\":[{\"ts\":\"2026-01-01T00:00:00Z\",\"x\":28,\"y\":14,\"z\":15}]}' \\\n")
	fmt.Fprintf(out, "    %s%s\n", api, receiver.SamplesPath)
	fmt.Fprintln(out)
}

func isPortAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
