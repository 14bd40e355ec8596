// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/spf13/viper"
)

const DefaultConfigPath = "/etc/voldisp/config.yml"

/* =========================
   Types
   ========================= */

type Config struct {
	Network  NetworkConfig   `mapstructure:"network"`
	Speaker  SpeakerConfig   `mapstructure:"speaker"`
	Time     TimeConfig      `mapstructure:"time"`
	Display  DisplayConfig   `mapstructure:"display"`
	Button   ButtonConfig    `mapstructure:"button"`
	Watchdog WatchdogConfig  `mapstructure:"watchdog"`
	Timing   TimingConfig    `mapstructure:"timing"`
	MQTT     MQTTConfig      `mapstructure:"mqtt"`
	Log      logging.Options `mapstructure:"log"`

	ConfigPath string `mapstructure:"-"`
}

type NetworkConfig struct {
	Interface    string        `mapstructure:"interface"` // e.g. wlan0; empty = any non-loopback
	SSID         string        `mapstructure:"ssid"`      // informational, association is done by the OS
	JoinTimeout  time.Duration `mapstructure:"join-timeout"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
}

type SpeakerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ControlPath   string        `mapstructure:"control-path"`
	ServiceType   string        `mapstructure:"service-type"`
	Timeout       time.Duration `mapstructure:"timeout"` // connect + read, per request
	VolumeDivisor int           `mapstructure:"volume-divisor"`
	MaxResponse   int           `mapstructure:"max-response"`
}

type TimeConfig struct {
	NTPServer       string        `mapstructure:"ntp-server"`
	Timeout         time.Duration `mapstructure:"timeout"`
	TimezoneOffset  int           `mapstructure:"timezone-offset"` // whole hours
	NightStartHour  int           `mapstructure:"night-start-hour"`
	NightEndHour    int           `mapstructure:"night-end-hour"`
	TwentyFourHours bool          `mapstructure:"twenty-four-hours"`
}

type DisplayConfig struct {
	Headless      bool          `mapstructure:"headless"`
	I2CBus        string        `mapstructure:"i2c-bus"` // periph bus name, "" = first
	Address       uint16        `mapstructure:"address"`
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
	Bright        int           `mapstructure:"bright"`
	Dim           int           `mapstructure:"dim"`
	FadeStep      int           `mapstructure:"fade-step"`
	FadeStepDelay time.Duration `mapstructure:"fade-step-delay"`
}

type ButtonConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Pin      string        `mapstructure:"pin"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type WatchdogConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Device  string        `mapstructure:"device"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TimingConfig struct {
	TickInterval     time.Duration `mapstructure:"tick-interval"`
	FastTickInterval time.Duration `mapstructure:"fast-tick-interval"`
	IdleDim          time.Duration `mapstructure:"idle-dim"`
	TimeInterval     time.Duration `mapstructure:"time-interval"`
	TimeDisplay      time.Duration `mapstructure:"time-display"`
	ReinitInterval   time.Duration `mapstructure:"reinit-interval"`
	GCInterval       time.Duration `mapstructure:"gc-interval"`
	ErrorThreshold   int           `mapstructure:"error-threshold"`
	StepMinDuration  time.Duration `mapstructure:"step-min-duration"`
	RetryBackoff     time.Duration `mapstructure:"retry-backoff"`
}

type MQTTConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BrokerURL         string        `mapstructure:"broker-url"`
	ClientName        string        `mapstructure:"client-name"`
	TopicPrefix       string        `mapstructure:"topic-prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat-interval"`
	ConnectTimeout    time.Duration `mapstructure:"connect-timeout"`
	PublishTimeout    time.Duration `mapstructure:"publish-timeout"`
	SubscribeTimeout  time.Duration `mapstructure:"subscribe-timeout"`
	CommandBufferSize int           `mapstructure:"command-buffer-size"`
}

/* =========================
   Helpers
   ========================= */

func (s SpeakerConfig) Addr() string { return net.JoinHostPort(s.Host, fmt.Sprint(s.Port)) }

// Location is a fixed zone for the configured whole-hour offset.
func (t TimeConfig) Location() *time.Location {
	name := fmt.Sprintf("UTC%+d", t.TimezoneOffset)
	return time.FixedZone(name, t.TimezoneOffset*3600)
}

// FadeDuration is the worst-case length of one full fade between dim and bright.
func (d DisplayConfig) FadeDuration() time.Duration {
	if d.FadeStep <= 0 {
		return 0
	}
	steps := (d.Bright - d.Dim + d.FadeStep - 1) / d.FadeStep
	return time.Duration(steps) * d.FadeStepDelay
}

/* =========================
   Load (viper) + validate
   ========================= */

func setDefaults(v *viper.Viper) {
	v.SetDefault("network.interface", "")
	v.SetDefault("network.ssid", "")
	v.SetDefault("network.join-timeout", 10*time.Second)
	v.SetDefault("network.poll-interval", 500*time.Millisecond)

	v.SetDefault("speaker.host", "")
	v.SetDefault("speaker.port", 1400)
	v.SetDefault("speaker.control-path", "/MediaRenderer/RenderingControl/Control")
	v.SetDefault("speaker.service-type", "urn:schemas-upnp-org:service:RenderingControl:1")
	v.SetDefault("speaker.timeout", 2*time.Second)
	v.SetDefault("speaker.volume-divisor", 2)
	v.SetDefault("speaker.max-response", 8192)

	v.SetDefault("time.ntp-server", "pool.ntp.org:123")
	v.SetDefault("time.timeout", 3*time.Second)
	v.SetDefault("time.timezone-offset", 0)
	v.SetDefault("time.night-start-hour", 22)
	v.SetDefault("time.night-end-hour", 5)
	v.SetDefault("time.twenty-four-hours", false)

	v.SetDefault("display.headless", false)
	v.SetDefault("display.i2c-bus", "")
	v.SetDefault("display.address", 0x3C)
	v.SetDefault("display.width", 128)
	v.SetDefault("display.height", 64)
	v.SetDefault("display.bright", 255)
	v.SetDefault("display.dim", 5)
	v.SetDefault("display.fade-step", 5)
	v.SetDefault("display.fade-step-delay", 10*time.Millisecond)

	v.SetDefault("button.enabled", true)
	v.SetDefault("button.pin", "GPIO17")
	v.SetDefault("button.debounce", 500*time.Millisecond)

	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.device", "/dev/watchdog")
	v.SetDefault("watchdog.timeout", 8*time.Second)

	v.SetDefault("timing.tick-interval", 500*time.Millisecond)
	v.SetDefault("timing.fast-tick-interval", 150*time.Millisecond)
	v.SetDefault("timing.idle-dim", 30*time.Second)
	v.SetDefault("timing.time-interval", 60*time.Second)
	v.SetDefault("timing.time-display", 5*time.Second)
	v.SetDefault("timing.reinit-interval", 300*time.Second)
	v.SetDefault("timing.gc-interval", 60*time.Second)
	v.SetDefault("timing.error-threshold", 5)
	v.SetDefault("timing.step-min-duration", time.Second)
	v.SetDefault("timing.retry-backoff", 5*time.Second)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker-url", "tcp://localhost:1883")
	v.SetDefault("mqtt.client-name", "voldisp")
	v.SetDefault("mqtt.topic-prefix", "voldisp")
	v.SetDefault("mqtt.heartbeat-interval", 60*time.Second)
	v.SetDefault("mqtt.connect-timeout", 10*time.Second)
	v.SetDefault("mqtt.publish-timeout", 5*time.Second)
	v.SetDefault("mqtt.subscribe-timeout", 5*time.Second)
	v.SetDefault("mqtt.command-buffer-size", 8)

	v.SetDefault("log.format", "json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age-days", 14)
}

// Load reads the config file at path (DefaultConfigPath when empty; a missing
// file is not an error), applies VOLDISP_* environment overrides and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VOLDISP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	setDefaults(v)

	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs multiErr

	/* Speaker */
	if strings.TrimSpace(c.Speaker.Host) == "" {
		errs.add("speaker.host is required")
	}
	if c.Speaker.Port <= 0 || c.Speaker.Port > 65535 {
		errs.addf("speaker.port must be 1..65535 (got %d)", c.Speaker.Port)
	}
	if !strings.HasPrefix(c.Speaker.ControlPath, "/") {
		errs.add("speaker.control-path must start with '/'")
	}
	if c.Speaker.Timeout <= 0 {
		errs.add("speaker.timeout must be > 0")
	}
	if c.Speaker.VolumeDivisor <= 0 {
		errs.add("speaker.volume-divisor must be > 0")
	}
	if c.Speaker.MaxResponse < 512 {
		c.Speaker.MaxResponse = 512
	}

	/* Time */
	if strings.TrimSpace(c.Time.NTPServer) == "" {
		errs.add("time.ntp-server is required")
	} else if _, _, err := net.SplitHostPort(c.Time.NTPServer); err != nil {
		c.Time.NTPServer = net.JoinHostPort(c.Time.NTPServer, "123")
	}
	if c.Time.Timeout <= 0 {
		errs.add("time.timeout must be > 0")
	}
	if c.Time.TimezoneOffset < -12 || c.Time.TimezoneOffset > 14 {
		errs.addf("time.timezone-offset must be -12..14 (got %d)", c.Time.TimezoneOffset)
	}
	if c.Time.NightStartHour < 0 || c.Time.NightStartHour > 23 || c.Time.NightEndHour < 0 || c.Time.NightEndHour > 23 {
		errs.add("time.night-start-hour and time.night-end-hour must be 0..23")
	}

	/* Display */
	if c.Display.Width <= 0 || c.Display.Height <= 0 || c.Display.Height%8 != 0 {
		errs.addf("display size %dx%d invalid (height must be a multiple of 8)", c.Display.Width, c.Display.Height)
	}
	if c.Display.Bright < 0 || c.Display.Bright > 255 || c.Display.Dim < 0 || c.Display.Dim > 255 {
		errs.add("display.bright and display.dim must be 0..255")
	} else if c.Display.Dim >= c.Display.Bright {
		errs.add("display.dim must be lower than display.bright")
	}
	if c.Display.FadeStep <= 0 || c.Display.FadeStep > 255 {
		errs.add("display.fade-step must be 1..255")
	}
	if c.Display.FadeStepDelay < 0 {
		errs.add("display.fade-step-delay cannot be negative")
	}

	/* Button */
	if c.Button.Enabled && strings.TrimSpace(c.Button.Pin) == "" {
		errs.add("button.pin is required when button.enabled")
	}
	if c.Button.Debounce < 0 {
		errs.add("button.debounce cannot be negative")
	}

	/* Timing */
	t := c.Timing
	if t.TickInterval <= 0 || t.FastTickInterval <= 0 {
		errs.add("timing.tick-interval and timing.fast-tick-interval must be > 0")
	}
	if t.TimeDisplay <= 0 || t.TimeInterval <= 0 || t.IdleDim <= 0 {
		errs.add("timing.time-display, timing.time-interval and timing.idle-dim must be > 0")
	}
	if t.ReinitInterval <= 0 {
		errs.add("timing.reinit-interval must be > 0")
	}
	if t.GCInterval <= 0 {
		c.Timing.GCInterval = 60 * time.Second
	}
	if t.ErrorThreshold < 0 {
		errs.add("timing.error-threshold cannot be negative")
	}
	if t.StepMinDuration < 0 || t.RetryBackoff <= 0 {
		errs.add("timing.step-min-duration cannot be negative and timing.retry-backoff must be > 0")
	}

	/* Watchdog */
	if c.Watchdog.Enabled {
		if c.Watchdog.Timeout < time.Second {
			errs.add("watchdog.timeout must be >= 1s")
		}
		// slowest tick: both polls time out, then the time screen fades down and back up
		worst := 2*c.Speaker.Timeout + 2*c.Display.FadeDuration()
		if worst >= c.Watchdog.Timeout {
			errs.addf("worst-case tick %v does not fit watchdog.timeout %v", worst, c.Watchdog.Timeout)
		}
		if c.Time.Timeout+c.Timing.StepMinDuration >= c.Watchdog.Timeout {
			errs.addf("time.timeout + timing.step-min-duration must stay below watchdog.timeout %v", c.Watchdog.Timeout)
		}
	}

	/* MQTT */
	if c.MQTT.Enabled {
		if strings.TrimSpace(c.MQTT.BrokerURL) == "" {
			errs.add("mqtt.broker-url is required when mqtt.enabled")
		}
		if strings.TrimSpace(c.MQTT.TopicPrefix) == "" {
			errs.add("mqtt.topic-prefix is required when mqtt.enabled")
		}
		if c.MQTT.CommandBufferSize <= 0 {
			c.MQTT.CommandBufferSize = 8
		}
		if c.MQTT.HeartbeatInterval == 0 {
			logging.Warn("mqtt.heartbeat-interval=0 configured, heartbeats disabled")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// small multi-error
type multiErr []string

func (m *multiErr) add(s string)            { *m = append(*m, s) }
func (m *multiErr) addf(f string, a ...any) { *m = append(*m, fmt.Sprintf(f, a...)) }
func (m multiErr) Error() string            { return "validation errors: " + strings.Join(m, "; ") }
