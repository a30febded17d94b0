package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	golobby "github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"gopkg.in/yaml.v3"
)

type Duration time.Duration

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	// allow: "300ms", "5s", integer seconds or fractional seconds
	switch value.Tag {
	case "!!int":
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	case "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	case "!!str":
		if value.Value == "" {
			*d = 0
			return nil
		}
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		if i, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
			*d = Duration(time.Duration(i) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	default:
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Device      DeviceConfig      `yaml:"device"`
	Panel       PanelConfig       `yaml:"panel"`
	Delays      DelaysConfig      `yaml:"delays"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Artwork     ArtworkConfig     `yaml:"artwork"`
}

type ServerConfig struct {
	Bind              string   `yaml:"bind" env:"PANEL_BIND"`
	Port              int      `yaml:"port" env:"PANEL_PORT"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	// how long a browser gets to confirm an audio play request
	AudioAckTimeout Duration `yaml:"audio_ack_timeout"`
}

type DeviceConfig struct {
	BaseURL   string   `yaml:"base_url" env:"DEVICE_BASE_URL"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"`
}

type PanelConfig struct {
	LogLevel       string   `yaml:"log_level" env:"LOG_LEVEL"`
	StatusInterval Duration `yaml:"status_interval"`
	HealthInterval Duration `yaml:"health_interval"`
	SilenceTick    Duration `yaml:"silence_tick"`
	SubmitSettle   Duration `yaml:"submit_settle"`
	VolumeDebounce Duration `yaml:"volume_debounce"`
}

type DelaysConfig struct {
	Command    Duration `yaml:"command"`
	MediaStart Duration `yaml:"media_start"`
	VideoStart Duration `yaml:"video_start"`
	Seek       Duration `yaml:"seek"`
}

type PreferencesConfig struct {
	DBPath           string   `yaml:"db_path" env:"PREFERENCES_DB_PATH"`
	Target           string   `yaml:"target"` // browser, device
	AutoPlaySpoken   bool     `yaml:"auto_play_spoken"`
	SilenceThreshold Duration `yaml:"silence_threshold"`
}

type ArtworkConfig struct {
	Enabled   bool     `yaml:"enabled"`
	CacheSize int      `yaml:"cache_size"`
	Timeout   Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:              "0.0.0.0",
			Port:              5080,
			ReadHeaderTimeout: Duration(5 * time.Second),
			AllowedOrigins:    []string{"http://localhost:5080"},
			AudioAckTimeout:   Duration(5 * time.Second),
		},
		Device: DeviceConfig{
			BaseURL:   "http://127.0.0.1:5000",
			Timeout:   Duration(15 * time.Second),
			UserAgent: "speakerpanel/1.0",
		},
		Panel: PanelConfig{
			LogLevel:       "info",
			StatusInterval: Duration(3 * time.Second),
			HealthInterval: Duration(30 * time.Second),
			SilenceTick:    Duration(100 * time.Millisecond),
			SubmitSettle:   Duration(300 * time.Millisecond),
			VolumeDebounce: Duration(100 * time.Millisecond),
		},
		Delays: DelaysConfig{
			Command:    Duration(300 * time.Millisecond),
			MediaStart: Duration(1500 * time.Millisecond),
			VideoStart: Duration(2000 * time.Millisecond),
			Seek:       Duration(500 * time.Millisecond),
		},
		Preferences: PreferencesConfig{
			DBPath:           "./panel.db",
			Target:           "browser",
			AutoPlaySpoken:   true,
			SilenceThreshold: Duration(1500 * time.Millisecond),
		},
		Artwork: ArtworkConfig{
			Enabled:   true,
			CacheSize: 64,
			Timeout:   Duration(5 * time.Second),
		},
	}
}

// Load reads the YAML file at path over Default, applies environment
// overrides and repairs invalid values. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}

	if err := golobby.New().AddFeeder(feeder.Env{}).AddStruct(&cfg).Feed(); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}

	sanitize(&cfg)
	return cfg, nil
}

func sanitize(cfg *Config) {
	def := Default()

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.Server.ReadHeaderTimeout.ToDuration() <= 0 {
		cfg.Server.ReadHeaderTimeout = def.Server.ReadHeaderTimeout
	}
	if cfg.Server.AudioAckTimeout.ToDuration() <= 0 {
		cfg.Server.AudioAckTimeout = def.Server.AudioAckTimeout
	}

	cfg.Device.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Device.BaseURL), "/")
	if cfg.Device.BaseURL == "" {
		cfg.Device.BaseURL = def.Device.BaseURL
	}
	if cfg.Device.Timeout.ToDuration() <= 0 {
		cfg.Device.Timeout = def.Device.Timeout
	}
	if cfg.Device.UserAgent == "" {
		cfg.Device.UserAgent = def.Device.UserAgent
	}

	if cfg.Panel.LogLevel == "" {
		cfg.Panel.LogLevel = def.Panel.LogLevel
	}
	if cfg.Panel.StatusInterval.ToDuration() <= 0 {
		cfg.Panel.StatusInterval = def.Panel.StatusInterval
	}
	if cfg.Panel.HealthInterval.ToDuration() <= 0 {
		cfg.Panel.HealthInterval = def.Panel.HealthInterval
	}
	if cfg.Panel.SilenceTick.ToDuration() <= 0 {
		cfg.Panel.SilenceTick = def.Panel.SilenceTick
	}
	if cfg.Panel.SubmitSettle.ToDuration() < 0 {
		cfg.Panel.SubmitSettle = def.Panel.SubmitSettle
	}
	if cfg.Panel.VolumeDebounce.ToDuration() < 0 {
		cfg.Panel.VolumeDebounce = def.Panel.VolumeDebounce
	}

	if cfg.Delays.Command.ToDuration() <= 0 {
		cfg.Delays.Command = def.Delays.Command
	}
	if cfg.Delays.MediaStart.ToDuration() <= 0 {
		cfg.Delays.MediaStart = def.Delays.MediaStart
	}
	if cfg.Delays.VideoStart.ToDuration() <= 0 {
		cfg.Delays.VideoStart = def.Delays.VideoStart
	}
	if cfg.Delays.Seek.ToDuration() <= 0 {
		cfg.Delays.Seek = def.Delays.Seek
	}

	if cfg.Preferences.DBPath == "" {
		cfg.Preferences.DBPath = def.Preferences.DBPath
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Preferences.Target)) {
	case "device", "remote", "remote_device":
		cfg.Preferences.Target = "device"
	default:
		cfg.Preferences.Target = "browser"
	}
	if cfg.Preferences.SilenceThreshold.ToDuration() <= 0 {
		cfg.Preferences.SilenceThreshold = def.Preferences.SilenceThreshold
	}

	if cfg.Artwork.CacheSize <= 0 {
		cfg.Artwork.CacheSize = def.Artwork.CacheSize
	}
	if cfg.Artwork.Timeout.ToDuration() <= 0 {
		cfg.Artwork.Timeout = def.Artwork.Timeout
	}
}
