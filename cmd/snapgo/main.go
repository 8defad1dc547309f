package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/SnapGo/internal/config"
	"github.com/cjeanneret/SnapGo/internal/debug"
	"github.com/cjeanneret/SnapGo/internal/hw/camera"
	"github.com/cjeanneret/SnapGo/internal/hw/gpio"
	"github.com/cjeanneret/SnapGo/internal/hw/indicator"
	"github.com/cjeanneret/SnapGo/internal/logic/snapshot"
	"github.com/cjeanneret/SnapGo/internal/publish"
	"github.com/cjeanneret/SnapGo/internal/schedule"
	"github.com/cjeanneret/SnapGo/internal/web"
)

// cliOptions holds values from command-line flags. Zero values mean "use config".
type cliOptions struct {
	configPath  string
	debugLevel  int
	port        int
	destination string
	device      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{debugLevel: -1}

	rootCmd := &cobra.Command{
		Use:   "snapgo",
		Short: "SnapGo - capture a webcam still over HTTP and publish it to a shared folder",
		Long: `SnapGo serves GET / on port 5000. Each request grabs one frame from a V4L2
camera with ffmpeg and copies the JPEG into a shared destination directory.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a configs/*.yaml file (default: built-in settings)")
	rootCmd.PersistentFlags().IntVar(&opts.debugLevel, "debug", -1, "debug level 0-4 (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.destination, "destination", "", "override publish destination directory")
	rootCmd.PersistentFlags().StringVar(&opts.device, "device", "", "override V4L2 device path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP capture endpoint (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	serveCmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (overrides config)")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture and publish a single still, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 video devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listDevices(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(serveCmd, captureCmd, devicesCmd)
	return rootCmd
}

// loadConfig merges built-in defaults or the YAML file, .env/SNAPGO_* variables and CLI flags.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		if err := config.ValidateConfigPath(opts.configPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config failed: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, fmt.Errorf("invalid CLI override: %w", err)
	}
	return cfg, nil
}

// applyOverrides mutates cfg with non-zero CLI values.
func applyOverrides(cfg *config.Config, opts *cliOptions) error {
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.debugLevel >= 0 {
		cfg.Defaults.DebugLevel = opts.debugLevel
	}
	if opts.destination != "" {
		cfg.Publish.Destination = opts.destination
	}
	if opts.device != "" {
		cfg.Capture.Device = opts.device
	}
	return cfg.Validate()
}

// buildService wires the grabber (optionally behind the busy LED) and the publisher.
// The returned cleanup releases GPIO.
func buildService(cfg *config.Config, onOutcome func(snapshot.Outcome)) (*snapshot.Service, func(), error) {
	var grabber camera.FrameGrabber = camera.NewFFmpegGrabber(camera.FFmpegConfig{
		Tool:        cfg.Capture.Tool,
		Device:      cfg.Capture.Device,
		Width:       cfg.Capture.Width,
		Height:      cfg.Capture.Height,
		InputFormat: cfg.Capture.InputFormat,
		Frames:      cfg.Capture.Frames,
		Quality:     cfg.Capture.Quality,
		Timeout:     cfg.CaptureTimeout(),
	})

	cleanup := func() {}
	if cfg.Indicator.Pin > 0 {
		drv, err := gpio.NewDriver(cfg.Indicator.MockGPIO)
		if err != nil {
			return nil, nil, fmt.Errorf("init GPIO failed: %w", err)
		}
		grabber = indicator.NewBusy(drv, cfg.Indicator.Pin).Wrap(grabber)
		cleanup = func() {
			if err := drv.Close(); err != nil {
				debug.Error(fmt.Errorf("closing GPIO driver failed: %w", err))
			}
		}
		debug.Value("Indicator pin", cfg.Indicator.Pin)
	}

	publisher := publish.NewCopyPublisher(cfg.Publish.Tool, cfg.PublishTimeout())

	svc := snapshot.NewService(grabber, publisher, snapshot.Options{
		WorkDir:                     cfg.Capture.WorkDir,
		Destination:                 cfg.Publish.Destination,
		SkipPublishOnCaptureFailure: cfg.Publish.SkipOnCaptureFailure,
		OnOutcome:                   onOutcome,
	})
	return svc, cleanup, nil
}

func runServe(ctx context.Context, opts *cliOptions) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	debug.Init(cfg.Defaults.DebugLevel)
	logSettings(cfg)

	svc, cleanup, err := buildService(cfg, broadcaster.BroadcastOutcome)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Schedule.Cron != "" {
		sched, err := schedule.New(cfg.Schedule.Cron, svc)
		if err != nil {
			return err
		}
		done := make(chan struct{})
		go func() {
			sched.Run(ctx)
			close(done)
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	handlers := web.NewHandlers(broadcaster, svc, settingsFromConfig(cfg))
	srv := web.NewServer(cfg.ListenAddr(), cfg.Server.CORSOrigins, handlers)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// errCaptureFailed is returned by the capture command so the process exits non-zero.
var errCaptureFailed = errors.New(web.CaptureFailureBody)

func runCapture(ctx context.Context, opts *cliOptions, out io.Writer) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	debug.Init(cfg.Defaults.DebugLevel)
	logSettings(cfg)

	svc, cleanup, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	result := svc.Run(ctx)
	if !result.OK() {
		return errCaptureFailed
	}
	fmt.Fprintf(out, "%s %s\n", web.CaptureSuccessBody, publish.Target(result.Filename, svc.Destination()))
	return nil
}

func listDevices(out io.Writer) error {
	devices, err := camera.Devices("/dev/video*", "/sys/class/video4linux")
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(out, "no video devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Fprintf(out, "%s\t%s\n", d.Path, d.Name)
	}
	return nil
}

func settingsFromConfig(cfg *config.Config) web.Settings {
	return web.Settings{
		Device:               cfg.Capture.Device,
		Resolution:           cfg.Resolution(),
		InputFormat:          cfg.Capture.InputFormat,
		Destination:          cfg.Publish.Destination,
		CaptureTimeoutMs:     cfg.Capture.TimeoutMs,
		PublishTimeoutMs:     cfg.Publish.TimeoutMs,
		SkipOnCaptureFailure: cfg.Publish.SkipOnCaptureFailure,
		Schedule:             cfg.Schedule.Cron,
	}
}

func logSettings(cfg *config.Config) {
	debug.Section("Configuration")
	debug.Value("Listen address", cfg.ListenAddr())
	debug.Value("Device", cfg.Capture.Device)
	debug.Value("Resolution", cfg.Resolution())
	debug.Value("Destination", cfg.Publish.Destination)
	debug.PrintStruct("Capture config", cfg.Capture)
	debug.PrintStruct("Publish config", cfg.Publish)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
