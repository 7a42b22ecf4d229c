package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/havenmind/havend/internal/assist"
	"github.com/havenmind/havend/internal/backend"
	"github.com/havenmind/havend/internal/config"
	"github.com/havenmind/havend/internal/connectivity"
	"github.com/havenmind/havend/internal/httpapi"
	"github.com/havenmind/havend/internal/logging"
	"github.com/havenmind/havend/internal/notify"
	"github.com/havenmind/havend/internal/retry"
	"github.com/havenmind/havend/internal/session"
	"github.com/havenmind/havend/internal/wellness"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon",
	Long: `Start the havend daemon.

Configuration comes from the optional config file and HAVEN_* environment
variables. The backend URL and anon key are required; without them the
daemon refuses to start.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to config file (YAML)")
}

// loadConfig loads and validates the configuration. Malformed
// configuration is fatal at startup, not discovered mid-request.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logging.Sync(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	return run(ctx, cfg, logger)
}

// run wires the daemon together and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := backend.NewClient(&cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("create backend client: %w", err)
	}

	hub := notify.NewHub()
	state := session.NewState()
	guard := session.NewGuard(state, client, hub, logger)

	monitor := connectivity.NewMonitor(connectivity.Config{
		ProbeTimeout:  cfg.Connectivity.ProbeTimeout.Duration(),
		ProbeInterval: cfg.Connectivity.ProbeInterval.Duration(),
		Freshness:     cfg.Connectivity.Freshness.Duration(),
	}, client, hub, logger)
	go monitor.Run(ctx)

	var feed wellness.Feed
	var realtime *backend.Realtime
	if cfg.Realtime.URL != "" {
		realtime, err = backend.ConnectRealtime(cfg.Realtime.URL, logger)
		if err != nil {
			// the daemon still works without realtime, just without
			// push-driven refreshes
			logger.Warn("realtime connection failed, continuing without change feed",
				zap.Error(err))
		} else {
			feed = realtime
			defer realtime.Close()
		}
	}

	var generator wellness.Generator
	if cfg.Assist.TextAPIKey.IsSet() {
		g, err := assist.NewGenerator(cfg.Assist)
		if err != nil {
			return fmt.Errorf("create assist generator: %w", err)
		}
		generator = g
	} else {
		logger.Warn("assist text api key not set, chat replies disabled")
	}

	var speech httpapi.Synthesizer
	if cfg.Assist.SpeechURL != "" {
		s, err := assist.NewSpeech(cfg.Assist)
		if err != nil {
			return fmt.Errorf("create speech client: %w", err)
		}
		speech = s
	}

	var translator httpapi.Translator
	if cfg.Assist.TranslateURL != "" {
		tr, err := assist.NewTranslator(cfg.Assist)
		if err != nil {
			return fmt.Errorf("create translator: %w", err)
		}
		translator = tr
	}

	deps := wellness.Deps{
		Store:          client,
		Monitor:        monitor,
		Guard:          guard,
		State:          state,
		Hub:            hub,
		Policy:         retry.PolicyFromConfig(cfg.Retry),
		Logger:         logger,
		Feed:           feed,
		ReloadDebounce: cfg.Realtime.ReloadDebounce.Duration(),
	}

	tasks := wellness.NewTasksService(deps)
	mood := wellness.NewMoodService(deps)
	chat := wellness.NewChatService(deps, generator)
	settings := wellness.NewSettingsService(deps)
	notifications := wellness.NewNotificationsService(deps)
	defer func() {
		tasks.Close()
		mood.Close()
		chat.Close()
		settings.Close()
		notifications.Close()
	}()

	server, err := httpapi.NewServer(httpapi.Deps{
		Auth:          client,
		State:         state,
		Monitor:       monitor,
		Hub:           hub,
		Tasks:         tasks,
		Mood:          mood,
		Chat:          chat,
		Settings:      settings,
		Notifications: notifications,
		Speech:        speech,
		Translator:    translator,
	}, logger, httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("havend started",
		zap.String("backend", cfg.Backend.URL),
		zap.Bool("realtime", feed != nil),
		zap.Bool("assist", generator != nil))

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("havend shutdown complete")
	return nil
}
