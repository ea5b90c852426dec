package cli

import (
	"fmt"
	"time"

	"codeberg.org/mutker/drowsyctl/internal/config"
	"codeberg.org/mutker/drowsyctl/internal/earlog"
	"codeberg.org/mutker/drowsyctl/internal/errors"
	"codeberg.org/mutker/drowsyctl/internal/logger"
	"codeberg.org/mutker/drowsyctl/internal/metrics"
	"codeberg.org/mutker/drowsyctl/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportWindow time.Duration
	reportTail   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the measurement log",
	Long: `Summarize the measurements of the last window and list the most recent
samples. Alert counts are included when the metrics database is enabled.

Older logs with an ear_value column are read as well.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		r, err := buildReport(cmd, cfg)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), report.Render(r))
		return nil
	},
}

func init() {
	reportCmd.Flags().DurationVar(&reportWindow, "window", 10*time.Minute, "Summarize samples newer than this")
	reportCmd.Flags().IntVar(&reportTail, "tail", 20, "Number of recent samples to list")
}

func buildReport(cmd *cobra.Command, cfg *config.Config) (report.Report, error) {
	log := logger.New("report")
	measurements := earlog.New(cfg.LogFile, earlog.WithThreshold(cfg.Threshold), earlog.WithLogger(log))

	r := report.Report{Path: cfg.LogFile, Window: reportWindow, Alerts: -1}

	summary, err := measurements.Summary(reportWindow)
	if err != nil {
		if !errors.HasCode(err, errors.ErrLogSchema) {
			return r, err
		}
		log.Warn().Err(err).Str("path", cfg.LogFile).Msg("Measurement log cannot be summarized")
	}
	r.Summary = summary

	recent, err := measurements.Tail(reportTail)
	if err != nil && !errors.HasCode(err, errors.ErrLogSchema) {
		return r, err
	}
	r.Recent = recent

	if cfg.Metrics {
		collector, err := metrics.NewService(metrics.Config{
			DBPath:  cfg.MetricsDB,
			Enabled: true,
		}, logger.New("metrics"))
		if err != nil {
			log.Warn().Err(err).Msg("Metrics database unavailable")
			return r, nil
		}
		defer collector.Close()

		n, err := collector.AlertsSince(cmd.Context(), time.Now().Add(-reportWindow))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count alerts")
			return r, nil
		}
		r.Alerts = n
	}

	return r, nil
}
