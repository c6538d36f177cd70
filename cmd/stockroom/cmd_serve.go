package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"stockroom/internal/auth"
	"stockroom/internal/config"
	"stockroom/internal/notify"
	"stockroom/internal/server"
	"stockroom/internal/store"
)

// sessionPurgeInterval is how often expired sessions get swept.
const sessionPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inventory HTTP API",
	Long: `Starts the stockroom server: SQLite-backed inventory storage, the
JSON API, and the low-stock email notifier. The config file is watched
and the email provider, webhook secret, admin list and log level are
applied live on change.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	am := auth.NewManager(st, logger, auth.Options{
		SessionTTL:     cfg.Auth.SessionTTLDuration(),
		EmailDomain:    cfg.Auth.EmailDomain,
		AdminUsernames: cfg.Auth.AdminUsernames,
	})

	notifier := notify.New(st, buildMailer(cfg), logger, cfg.Email.Sender)
	srv := server.New(st, am, notifier, logger, cfg.Auth.HookSecret)

	httpSrv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := config.NewWatcher(configPath, logger, func(next *config.Config) {
		notifier.SetMailer(buildMailer(next), next.Email.Sender)
		srv.SetHookSecret(next.Auth.HookSecret)
		am.SetAdminUsernames(next.Auth.AdminUsernames)
		applyLogLevel(next.Logging.Level)
		logger.Info("applied reloaded config")
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				am.PurgeExpired(ctx)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// applyLogLevel retunes the logger to the configured level. --verbose
// pins debug for the life of the process.
func applyLogLevel(level string) {
	if verbose || level == "" {
		return
	}
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level in config", zap.String("level", level))
		return
	}
	logLevel.SetLevel(parsed)
}

// buildMailer returns the configured mailer, or nil when email is off.
// A nil mailer still claims the daily slot and logs the alert.
func buildMailer(cfg *config.Config) notify.Mailer {
	if !cfg.Email.Enabled {
		return nil
	}
	return notify.NewHTTPMailer(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.TimeoutDuration())
}
