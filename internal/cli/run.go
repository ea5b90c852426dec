package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/alert"
	"codeberg.org/mutker/drowsyctl/internal/analyzer"
	"codeberg.org/mutker/drowsyctl/internal/buzzer"
	"codeberg.org/mutker/drowsyctl/internal/camera"
	"codeberg.org/mutker/drowsyctl/internal/capture"
	"codeberg.org/mutker/drowsyctl/internal/config"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/landmark"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"codeberg.org/mutker/drowsyctl/internal/metrics"
	"codeberg.org/mutker/drowsyctl/internal/mqtt"
	"codeberg.org/mutker/drowsyctl/internal/pid"
	"codeberg.org/mutker/drowsyctl/internal/status"
	"codeberg.org/mutker/drowsyctl/internal/web"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var pidFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Capture frames and raise drowsiness alerts",
	Long: `Open the camera, analyze frames at the configured cadence and raise an
alert whenever the eyes stay closed for the configured run of frames.

Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go handleSignals(ctx, cancel)

		return runService(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&pidFile, "pid-file", pid.DefaultPath(), "PID file path")
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal")
		cancel()
	case <-ctx.Done():
	}
}

func openerFor(cfg *config.Config) camera.Opener {
	if cfg.ReplayDir != "" {
		return camera.ReplayOpener{Dir: cfg.ReplayDir}
	}
	return camera.NewDeviceOpener()
}

// runService wires the pipeline and its outputs and blocks until ctx ends.
func runService(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()
	log := logger.New("drowsyctl")

	if err := pid.Write(pidFile); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidFile); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	opener := openerFor(cfg)
	if err := camera.Probe(opener, cfg.Device); err != nil {
		log.Error().Err(err).Int("device", cfg.Device).Msg("Camera unavailable")
		return err
	}

	detector, err := landmark.Dial(cfg.DetectorAddr, cfg.DetectorTimeout)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}
	defer detector.Close()

	measurements := earlog.New(cfg.LogFile,
		earlog.WithThreshold(cfg.Threshold),
		earlog.WithLogger(logger.New("earlog")),
	)

	loop := capture.New(
		capture.Config{
			Device:      cfg.Device,
			Interval:    cfg.Interval(),
			ReadBackoff: cfg.ReadBackoff,
			StopTimeout: cfg.StopTimeout,
		},
		opener,
		analyzer.New(detector, cfg.Threshold, logger.New("analyzer")),
		alert.NewPolicy(alert.Options{
			RunLength:      cfg.RunLength,
			Cooldown:       cfg.Cooldown,
			ResetOnDropout: cfg.ResetOnDropout,
		}),
		measurements,
		capture.WithLogger(logger.New("capture")),
	)
	var outs outputs
	defer func() {
		if err := outs.closeAfter(loop); err != nil {
			log.Warn().Err(err).Msg("Capture loop did not stop cleanly")
		}
	}()

	loop.OnLogError(func(err error) {
		log.Error().Err(err).Str("path", cfg.LogFile).Msg("Failed to append measurement")
	})

	collector, err := metrics.NewService(metrics.Config{
		DBPath:       cfg.MetricsDB,
		BatchSize:    metrics.DefaultConfig().BatchSize,
		BatchTimeout: metrics.DefaultConfig().BatchTimeout,
		Enabled:      cfg.Metrics,
	}, logger.New("metrics"))
	if err != nil {
		return err
	}
	outs.add(func() { _ = collector.Close() })
	metrics.Forward(context.WithoutCancel(ctx), loop, collector, logger.New("metrics"))

	var publisher *mqtt.RealPublisher
	if cfg.MQTTBroker != "" {
		publisher, err = mqtt.NewRealPublisher(cfg.MQTTBroker, "drowsyctl-"+hostname(), cfg.MQTTTopic)
		if err != nil {
			return err
		}
		outs.add(func() { _ = publisher.Close() })
		mqtt.Forward(loop, publisher, logger.New("mqtt"))
		log.Info().Str("broker", cfg.MQTTBroker).Msg("Publishing alerts over MQTT")
	}

	if cfg.BuzzerPin >= 0 {
		line, err := buzzer.OpenLine(cfg.BuzzerChip, cfg.BuzzerPin)
		if err != nil {
			return err
		}
		b, err := buzzer.New(line)
		if err != nil {
			line.Close()
			return err
		}
		outs.add(func() { _ = b.Close() })
		buzzer.Forward(loop, b, cfg.BuzzerPulse, logger.New("buzzer"))
	}

	if cfg.HTTP != "" {
		tracker := status.NewTracker(time.Now(), status.Config{
			Device:    cfg.Device,
			Threshold: cfg.Threshold,
			RunLength: cfg.RunLength,
			Cooldown:  cfg.Cooldown,
			CadenceHz: cfg.CadenceHz,
			LogFile:   cfg.LogFile,
			Detector:  cfg.DetectorAddr,
			Broker:    cfg.MQTTBroker,
			HTTPAddr:  cfg.HTTP,
		})
		tracker.Attach(loop)
		if publisher != nil {
			tracker.SetMQTTStatus(publisher.IsConnected)
		}

		srv := web.New(cfg.HTTP, tracker, loop, measurements, logger.New("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.HTTP).Msg("Status server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("Status server shutdown failed")
			}
		}()
		log.Info().Str("addr", cfg.HTTP).Msg("Status server listening")
	}

	if err := loop.Start(ctx); err != nil {
		return err
	}
	log.Info().
		Int("device", cfg.Device).
		Float64("threshold", cfg.Threshold).
		Int("run_length", cfg.RunLength).
		Dur("cooldown", cfg.Cooldown).
		Str("session", loop.SessionID()).
		Msg("Capture started")

	<-ctx.Done()

	if err := loop.Stop(); err != nil {
		log.Warn().Err(err).Msg("Capture loop stop timed out")
	}
	stats := loop.Stats()
	log.Info().
		Uint64("frames", stats.Frames).
		Uint64("measured", stats.Measured).
		Uint64("alerts", stats.Alerts).
		Msg("Capture stopped")

	return nil
}

// outputs are the sinks fed by loop hooks.
type outputs struct {
	closers []func()
}

func (o *outputs) add(fn func()) {
	o.closers = append(o.closers, fn)
}

// closeAfter closes loop, which waits for in-flight hook calls, and only then
// closes the sinks in reverse order of registration.
func (o *outputs) closeAfter(loop *capture.Loop) error {
	err := loop.Close()
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
	o.closers = nil
	return err
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "local"
	}
	return name
}
