// cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kwhart/pulsemon/internal/cli/monitor"
	"github.com/kwhart/pulsemon/internal/config"
	"github.com/kwhart/pulsemon/internal/recovery"
	"github.com/kwhart/pulsemon/internal/server"
	"github.com/kwhart/pulsemon/internal/stream"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection pipeline with the HTTP API",
	Long: `Runs the monitor pipeline and serves the latest estimate over HTTP:
GET /api/v1/bpm, GET /api/v1/status, and POST /api/v1/reset.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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
	}

	srv := server.New()
	runner, err := monitor.New(monitor.Options{
		Settings:  settings,
		Publisher: publisher,
		Server:    srv,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    settings.HTTPAddr,
		Handler: srv.Router(),
	}

	httpErr := make(chan error, 1)
	go func() {
		defer recovery.HandlePanicFunc(stop)
		logger.Info("http api listening", "addr", settings.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		defer recovery.HandlePanicFunc(stop)
		runErr <- runner.Run(ctx)
	}()

	select {
	case err := <-httpErr:
		stop()
		<-runErr
		return err
	case err := <-runErr:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("http shutdown failed", "error", serr)
		}
		return err
	}
}
