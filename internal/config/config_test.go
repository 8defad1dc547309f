package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/SnapGo/internal/debug"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
		"configs/../configs/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

// ---------- Default ----------

func TestDefault_MatchesBuiltInValues(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.Address != "" {
		t.Errorf("address = %q, want all interfaces (\"\")", cfg.Server.Address)
	}
	if cfg.ListenAddr() != ":5000" {
		t.Errorf("ListenAddr() = %q, want \":5000\"", cfg.ListenAddr())
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("cors_origins = %v, want [*]", cfg.Server.CORSOrigins)
	}
	if cfg.Capture.Device != "/dev/video0" {
		t.Errorf("device = %q, want /dev/video0", cfg.Capture.Device)
	}
	if cfg.Resolution() != "1920x1080" {
		t.Errorf("Resolution() = %q, want 1920x1080", cfg.Resolution())
	}
	if cfg.Capture.InputFormat != "mjpeg" {
		t.Errorf("input_format = %q, want mjpeg", cfg.Capture.InputFormat)
	}
	if cfg.Capture.Frames != 1 || cfg.Capture.Quality != 2 {
		t.Errorf("frames/quality = %d/%d, want 1/2", cfg.Capture.Frames, cfg.Capture.Quality)
	}
	if cfg.Publish.Destination != "./windows_shared/" {
		t.Errorf("destination = %q, want ./windows_shared/", cfg.Publish.Destination)
	}
	if cfg.Publish.Tool != "cp" || cfg.Capture.Tool != "ffmpeg" {
		t.Errorf("tools = %q/%q, want ffmpeg/cp", cfg.Capture.Tool, cfg.Publish.Tool)
	}
	if cfg.Publish.SkipOnCaptureFailure {
		t.Error("skip_on_capture_failure should default to false")
	}
	if cfg.Defaults.DebugLevel != 1 {
		t.Errorf("debug_level = %d, want 1", cfg.Defaults.DebugLevel)
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
server:
  address: "127.0.0.1"
  port: 8081
capture:
  tool: "/usr/local/bin/ffmpeg"
  device: "/dev/video2"
  width: 1280
  height: 720
  input_format: "yuyv422"
  quality: 4
  work_dir: "/tmp/snapgo"
  timeout_ms: 5000
publish:
  destination: "/mnt/share"
  skip_on_capture_failure: true
indicator:
  pin: 18
  mock_gpio: true
schedule:
  cron: "*/5 * * * *"
defaults:
  debug_level: 3
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr() != "127.0.0.1:8081" {
		t.Errorf("ListenAddr() = %q, want 127.0.0.1:8081", cfg.ListenAddr())
	}
	if cfg.Capture.Device != "/dev/video2" {
		t.Errorf("device = %q, want /dev/video2", cfg.Capture.Device)
	}
	if cfg.Resolution() != "1280x720" {
		t.Errorf("Resolution() = %q, want 1280x720", cfg.Resolution())
	}
	if cfg.Capture.InputFormat != "yuyv422" {
		t.Errorf("input_format = %q, want yuyv422", cfg.Capture.InputFormat)
	}
	if cfg.Capture.Frames != 1 {
		t.Errorf("frames default = %d, want 1", cfg.Capture.Frames)
	}
	if cfg.CaptureTimeout() != 5*time.Second {
		t.Errorf("CaptureTimeout() = %v, want 5s", cfg.CaptureTimeout())
	}
	if cfg.Publish.Destination != "/mnt/share" {
		t.Errorf("destination = %q, want /mnt/share", cfg.Publish.Destination)
	}
	if !cfg.Publish.SkipOnCaptureFailure {
		t.Error("skip_on_capture_failure should be true")
	}
	if cfg.Publish.Tool != "cp" {
		t.Errorf("publish.tool default = %q, want cp", cfg.Publish.Tool)
	}
	if cfg.Indicator.Pin != 18 || !cfg.Indicator.MockGPIO {
		t.Errorf("indicator = %+v, want pin 18 mock", cfg.Indicator)
	}
	if cfg.Schedule.Cron != "*/5 * * * *" {
		t.Errorf("schedule.cron = %q", cfg.Schedule.Cron)
	}
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug_level = %d, want 3", cfg.Defaults.DebugLevel)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "defaults:\n  debug_level: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("port default = %d, want 5000", cfg.Server.Port)
	}
	if cfg.CaptureTimeout() != 30*time.Second {
		t.Errorf("capture timeout default = %v, want 30s", cfg.CaptureTimeout())
	}
	if cfg.PublishTimeout() != 10*time.Second {
		t.Errorf("publish timeout default = %v, want 10s", cfg.PublishTimeout())
	}
	if cfg.Capture.WorkDir != "." {
		t.Errorf("work_dir default = %q, want \".\"", cfg.Capture.WorkDir)
	}
}

func TestLoad_NegativeTimeoutDisables(t *testing.T) {
	yaml := `
capture:
  timeout_ms: -1
publish:
  timeout_ms: -1
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CaptureTimeout() != 0 || cfg.PublishTimeout() != 0 {
		t.Errorf("timeouts = %v/%v, want 0/0", cfg.CaptureTimeout(), cfg.PublishTimeout())
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"port_too_large", "server:\n  port: 70000\n"},
		{"negative_port", "server:\n  port: -1\n"},
		{"negative_width", "capture:\n  width: -1\n"},
		{"negative_frames", "capture:\n  frames: -2\n"},
		{"quality_too_large", "capture:\n  quality: 32\n"},
		{"indicator_pin_out_of_range", "indicator:\n  pin: 40\n"},
		{"debug_level_too_high", "defaults:\n  debug_level: 5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Errorf("expected error for %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, strings.Repeat("#", MaxConfigFileBytes+1))
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("empty config should load with defaults, got: %v", err)
	}
	if cfg.Capture.Device != "/dev/video0" {
		t.Errorf("device = %q, want /dev/video0", cfg.Capture.Device)
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
capture:
  device: "/dev/video1"
unknown_section:
  foo: bar
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "nonexistent.yaml")
	if _, err := Load(path); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- ApplyEnv ----------

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"SNAPGO_ADDRESS":      "127.0.0.1",
		"SNAPGO_PORT":         "9000",
		"SNAPGO_DEVICE":       "/dev/video4",
		"SNAPGO_CAPTURE_TOOL": "/opt/ffmpeg",
		"SNAPGO_COPY_TOOL":    "/bin/cp",
		"SNAPGO_DESTINATION":  "/srv/share",
		"SNAPGO_SCHEDULE":     "0 * * * *",
		"SNAPGO_DEBUG_LEVEL":  "2",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.ListenAddr() != "127.0.0.1:9000" {
		t.Errorf("ListenAddr() = %q", cfg.ListenAddr())
	}
	if cfg.Capture.Device != "/dev/video4" || cfg.Capture.Tool != "/opt/ffmpeg" {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Publish.Destination != "/srv/share" || cfg.Publish.Tool != "/bin/cp" {
		t.Errorf("publish = %+v", cfg.Publish)
	}
	if cfg.Schedule.Cron != "0 * * * *" {
		t.Errorf("schedule = %q", cfg.Schedule.Cron)
	}
	if cfg.Defaults.DebugLevel != 2 {
		t.Errorf("debug_level = %d, want 2", cfg.Defaults.DebugLevel)
	}
}

func TestApplyEnv_EmptyLeavesConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(envMap(nil)); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.Server.Port)
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cases := []map[string]string{
		{"SNAPGO_PORT": "not-a-port"},
		{"SNAPGO_PORT": "0"},
		{"SNAPGO_DEBUG_LEVEL": "loud"},
		{"SNAPGO_DEBUG_LEVEL": "9"},
	}
	for _, env := range cases {
		cfg := Default()
		if err := cfg.ApplyEnv(envMap(env)); err == nil {
			t.Errorf("expected error for %v, got nil", env)
		}
	}
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestLoadDotEnv_MalformedFileReported(t *testing.T) {
	var buf bytes.Buffer
	debug.SetOutput(&buf)
	debug.Init(debug.LevelInfo)
	t.Cleanup(func() {
		debug.Init(debug.LevelOff)
		debug.SetOutput(os.Stdout)
	})

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SNAPGO_DEVICE=\"/dev/video1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	err := LoadDotEnv(path)
	if err == nil {
		t.Fatal("expected error for unterminated quoted value")
	}
	if !strings.Contains(buf.String(), path) {
		t.Errorf("error not logged: %q", buf.String())
	}
}
