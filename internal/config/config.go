// Package config loads sentinel settings from an optional YAML file,
// built-in defaults and SENTINEL_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/safecircle/sentinel/internal/alert"
	"github.com/safecircle/sentinel/internal/detector"
	"github.com/safecircle/sentinel/internal/location"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "SENTINEL"

// Config is the complete runtime configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Location  LocationConfig  `mapstructure:"location"`
	Contacts  []alert.Contact `mapstructure:"contacts"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Push      PushConfig      `mapstructure:"push"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Geocode   GeocodeConfig   `mapstructure:"geocode"`
	Transport TransportConfig `mapstructure:"transport"`
	Receiver  ReceiverConfig  `mapstructure:"receiver"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DetectorConfig struct {
	Threshold      float64       `mapstructure:"threshold"`
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	Countdown      int           `mapstructure:"countdown"`
	FixTimeout     time.Duration `mapstructure:"fix_timeout"`
}

// LocationConfig pins the position reported by the built-in provider.
// Permission may be "granted" or "denied".
type LocationConfig struct {
	Latitude   float64 `mapstructure:"latitude"`
	Longitude  float64 `mapstructure:"longitude"`
	Permission string  `mapstructure:"permission"`
}

type SMSConfig struct {
	Provider string       `mapstructure:"provider"` // twilio, sns, none
	Twilio   TwilioConfig `mapstructure:"twilio"`
	SNS      SNSConfig    `mapstructure:"sns"`
}

type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

type SNSConfig struct {
	Region   string `mapstructure:"region"`
	SenderID string `mapstructure:"sender_id"`
}

type PushConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type GeocodeConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type TransportConfig struct {
	Host     string `mapstructure:"host"`
	WSPort   int    `mapstructure:"ws_port"`
	SSEPort  int    `mapstructure:"sse_port"`
	UDPPort  int    `mapstructure:"udp_port"`
	Encoding string `mapstructure:"encoding"`
}

type ReceiverConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
	Gzip  bool   `mapstructure:"gzip"`
}

// AlertsConfig controls local delivery of alerts
type AlertsConfig struct {
	// LogFile, when set, receives every alert as one NDJSON line.
	LogFile       string        `mapstructure:"log_file"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
}

func setDefaults(v *viper.Viper) {
	def := detector.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("detector.threshold", def.ImpactThreshold)
	v.SetDefault("detector.sample_interval", def.SampleInterval)
	v.SetDefault("detector.countdown", def.CountdownSeconds)
	v.SetDefault("detector.fix_timeout", def.FixTimeout)

	v.SetDefault("location.latitude", 0.0)
	v.SetDefault("location.longitude", 0.0)
	v.SetDefault("location.permission", string(location.PermissionGranted))

	v.SetDefault("sms.provider", "none")
	v.SetDefault("sms.twilio.account_sid", "")
	v.SetDefault("sms.twilio.auth_token", "")
	v.SetDefault("sms.twilio.from", "")
	v.SetDefault("sms.sns.region", "us-east-1")
	v.SetDefault("sms.sns.sender_id", "")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("geocode.api_key", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", alert.DefaultStream)
	v.SetDefault("redis.max_len", 10000)

	v.SetDefault("transport.host", "127.0.0.1")
	v.SetDefault("transport.ws_port", 8787)
	v.SetDefault("transport.sse_port", 8788)
	v.SetDefault("transport.udp_port", 8789)
	v.SetDefault("transport.encoding", "json")

	v.SetDefault("receiver.host", "0.0.0.0")
	v.SetDefault("receiver.port", 8790)
	v.SetDefault("receiver.token", "")
	v.SetDefault("receiver.gzip", true)

	v.SetDefault("alerts.log_file", "")
	v.SetDefault("alerts.notify_timeout", 20*time.Second)
}

// Load reads path (when non-empty) over the defaults and applies
// environment overrides such as SENTINEL_DETECTOR_THRESHOLD.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the monitor cannot run with
func (c *Config) Validate() error {
	if c.Detector.Threshold <= 0 {
		return fmt.Errorf("detector.threshold must be positive")
	}
	if c.Detector.SampleInterval <= 0 {
		return fmt.Errorf("detector.sample_interval must be positive")
	}
	if c.Detector.Countdown <= 0 {
		return fmt.Errorf("detector.countdown must be positive")
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("location.latitude must be within [-90, 90]")
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("location.longitude must be within [-180, 180]")
	}
	switch location.Permission(c.Location.Permission) {
	case location.PermissionGranted, location.PermissionDenied:
	default:
		return fmt.Errorf("location.permission must be 'granted' or 'denied'")
	}

	switch c.SMS.Provider {
	case "none", "":
	case "twilio":
		if c.SMS.Twilio.AccountSID == "" || c.SMS.Twilio.AuthToken == "" || c.SMS.Twilio.From == "" {
			return fmt.Errorf("sms.twilio requires account_sid, auth_token and from")
		}
	case "sns":
		if c.SMS.SNS.Region == "" {
			return fmt.Errorf("sms.sns.region is required")
		}
	default:
		return fmt.Errorf("invalid sms.provider %q (expected: twilio|sns|none)", c.SMS.Provider)
	}

	for i, contact := range c.Contacts {
		if contact.Name == "" {
			return fmt.Errorf("contacts[%d].name is required", i)
		}
		if contact.Phone == "" && contact.PushToken == "" {
			return fmt.Errorf("contacts[%d] needs a phone or push_token", i)
		}
	}
	return nil
}

// DetectorSettings converts the detector section for detector.New
func (c *Config) DetectorSettings() detector.Config {
	return detector.Config{
		ImpactThreshold:  c.Detector.Threshold,
		SampleInterval:   c.Detector.SampleInterval,
		CountdownSeconds: c.Detector.Countdown,
		FixTimeout:       c.Detector.FixTimeout,
	}
}

// Point returns the configured fixed position
func (c *Config) Point() location.Point {
	return location.Point{Latitude: c.Location.Latitude, Longitude: c.Location.Longitude}
}
