package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address     string   `yaml:"address"`      // listen address; "" or "0.0.0.0" = all interfaces
	Port        int      `yaml:"port"`         // listen port (default 5000)
	CORSOrigins []string `yaml:"cors_origins"` // allowed origins (default "*")
}

// CaptureConfig describes the external capture tool invocation.
type CaptureConfig struct {
	Tool        string `yaml:"tool"`         // capture binary, e.g. "ffmpeg"
	Device      string `yaml:"device"`       // V4L2 device node
	Width       int    `yaml:"width"`        // frame width in pixels
	Height      int    `yaml:"height"`       // frame height in pixels
	InputFormat string `yaml:"input_format"` // e.g. "mjpeg"
	Frames      int    `yaml:"frames"`       // frames to grab (1 for a still)
	Quality     int    `yaml:"quality"`      // -q:v value, 2 = best JPEG
	WorkDir     string `yaml:"work_dir"`     // where captures are written before publishing
	TimeoutMs   int    `yaml:"timeout_ms"`   // 0 = default (30s), negative = no timeout
}

// PublishConfig describes where captures are copied to.
type PublishConfig struct {
	Tool                 string `yaml:"tool"`        // copy binary, e.g. "cp"
	Destination          string `yaml:"destination"` // must pre-exist, never created
	TimeoutMs            int    `yaml:"timeout_ms"`  // 0 = default (10s), negative = no timeout
	SkipOnCaptureFailure bool   `yaml:"skip_on_capture_failure"`
}

// IndicatorConfig is an optional busy LED driven while the camera is in use.
type IndicatorConfig struct {
	Pin      int  `yaml:"pin"`       // GPIO pin (BCM). 0 = disabled.
	MockGPIO bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// ScheduleConfig triggers captures periodically in serve mode.
type ScheduleConfig struct {
	Cron string `yaml:"cron"` // standard 5-field cron expression, "" = disabled
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Capture   CaptureConfig   `yaml:"capture"`
	Publish   PublishConfig   `yaml:"publish"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// Default returns the built-in configuration: port 5000 on all interfaces,
// /dev/video0 at 1920x1080 MJPEG, published to ./windows_shared/.
func Default() *Config {
	cfg := &Config{Defaults: DefaultsConfig{DebugLevel: 1}}
	cfg.applyDefaults()
	return cfg
}

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 64 << 10

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Capture.Tool == "" {
		c.Capture.Tool = "ffmpeg"
	}
	if c.Capture.Device == "" {
		c.Capture.Device = "/dev/video0"
	}
	if c.Capture.Width == 0 {
		c.Capture.Width = 1920
	}
	if c.Capture.Height == 0 {
		c.Capture.Height = 1080
	}
	if c.Capture.InputFormat == "" {
		c.Capture.InputFormat = "mjpeg"
	}
	if c.Capture.Frames == 0 {
		c.Capture.Frames = 1
	}
	if c.Capture.Quality == 0 {
		c.Capture.Quality = 2
	}
	if c.Capture.WorkDir == "" {
		c.Capture.WorkDir = "."
	}
	if c.Capture.TimeoutMs == 0 {
		c.Capture.TimeoutMs = 30000
	}

	if c.Publish.Tool == "" {
		c.Publish.Tool = "cp"
	}
	if c.Publish.Destination == "" {
		c.Publish.Destination = "./windows_shared/"
	}
	if c.Publish.TimeoutMs == 0 {
		c.Publish.TimeoutMs = 10000
	}
}

// Validate checks value ranges after defaults have been applied.
// A negative timeout disables it and is normalised to 0.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("capture resolution must be positive, got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.Frames < 0 {
		return fmt.Errorf("capture.frames must be >= 1, got %d", c.Capture.Frames)
	}
	if c.Capture.Quality < 0 || c.Capture.Quality > 31 {
		return fmt.Errorf("capture.quality must be between 1 and 31, got %d", c.Capture.Quality)
	}
	if c.Capture.TimeoutMs < 0 {
		c.Capture.TimeoutMs = 0
	}
	if c.Publish.TimeoutMs < 0 {
		c.Publish.TimeoutMs = 0
	}
	if c.Indicator.Pin < 0 || c.Indicator.Pin > 27 {
		return fmt.Errorf("indicator.pin must be a BCM pin 0-27, got %d", c.Indicator.Pin)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// ValidateConfigPath accepts only .yaml files that live directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path %q must not contain '..'", path)
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// LoadDotEnv loads path (normally ".env") into the environment.
// A missing file is not an error; an unreadable or malformed one is.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	err = fmt.Errorf("load %s: %w", path, err)
	debug.Error(err)
	return err
}

// ApplyEnv overrides config values from SNAPGO_* variables.
// lookup is os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SNAPGO_ADDRESS"); ok {
		c.Server.Address = v
	}
	if v, ok := lookup("SNAPGO_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SNAPGO_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("SNAPGO_DEVICE"); ok && v != "" {
		c.Capture.Device = v
	}
	if v, ok := lookup("SNAPGO_CAPTURE_TOOL"); ok && v != "" {
		c.Capture.Tool = v
	}
	if v, ok := lookup("SNAPGO_COPY_TOOL"); ok && v != "" {
		c.Publish.Tool = v
	}
	if v, ok := lookup("SNAPGO_DESTINATION"); ok && v != "" {
		c.Publish.Destination = v
	}
	if v, ok := lookup("SNAPGO_SCHEDULE"); ok {
		c.Schedule.Cron = v
	}
	if v, ok := lookup("SNAPGO_DEBUG_LEVEL"); ok && v != "" {
		lvl, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SNAPGO_DEBUG_LEVEL: %w", err)
		}
		c.Defaults.DebugLevel = lvl
	}
	return c.Validate()
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Resolution returns the capture size as WxH.
func (c *Config) Resolution() string {
	return fmt.Sprintf("%dx%d", c.Capture.Width, c.Capture.Height)
}

// CaptureTimeout returns the capture invocation timeout; 0 means none.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutMs) * time.Millisecond
}

// PublishTimeout returns the copy invocation timeout; 0 means none.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Publish.TimeoutMs) * time.Millisecond
}
