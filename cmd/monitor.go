// cmd/monitor.go
package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kwhart/pulsemon/internal/cli/monitor"
	"github.com/kwhart/pulsemon/internal/config"
	"github.com/kwhart/pulsemon/internal/stream"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the detection pipeline against the synthetic frame source",
	Long: `Drives the synthetic pulse waveform through the detection engine at the
configured frame rate, logging state transitions and optionally publishing
readings and beat events to NATS.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}

	logger := newLogger(settings)

	var publisher *stream.Publisher
	if settings.NATSURL != "" {
		nc, err := stream.Connect(settings.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Drain()
		publisher = stream.NewPublisher(nc, settings.NATSPrefix)
		logger.Info("streaming enabled", "url", settings.NATSURL, "prefix", settings.NATSPrefix)
	}

	runner, err := monitor.New(monitor.Options{
		Settings:  settings,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runner.Run(ctx)
}

// newLogger builds the JSON logger shared by the long-running commands.
func newLogger(settings *config.Settings) *slog.Logger {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
