package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the journal API",
	Long: `Start the HTTP API. Journals and accounts are stored locally and
mirrored to the remote database when one is configured; cached journals are
reconciled with the remote on journal.resync_schedule.

Example:
  tradebook serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Options{
		Journals:           a.journals,
		Accounts:           a.accounts,
		Tokens:             server.NewTokenIssuer(cfg.Server.JWTSecret, cfg.Server.TokenTTL),
		Logger:             logger,
		WeekStartsOnSunday: cfg.Journal.WeekStartsOnSunday,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	if a.remoteEnabled() && cfg.Journal.ResyncSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Journal.ResyncSchedule, func() {
			n, err := a.journals.Resync(ctx)
			if err != nil {
				logger.Warn("resync failed", zap.Error(err))
				return
			}
			logger.Info("resync", zap.Int("documents", n))
		}); err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.Bool("remote", a.remoteEnabled()))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
