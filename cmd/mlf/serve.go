package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/backend/hosted"
	"github.com/madhesh-litfest/mlf/pkg/config"
	"github.com/madhesh-litfest/mlf/pkg/logging"
	"github.com/madhesh-litfest/mlf/pkg/notify"
	"github.com/madhesh-litfest/mlf/pkg/storage"
	"github.com/madhesh-litfest/mlf/pkg/telemetry"
	"github.com/madhesh-litfest/mlf/pkg/web"
)

type webServer interface {
	Start(ctx context.Context) error
}

var serveNewServerFn = func(opts web.Options) (webServer, error) {
	return web.New(opts)
}

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the festival website and admin area",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if l := strings.TrimSpace(listen); l != "" {
				cfg.Server.Listen = l
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides server.listen)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	printWarnings(cfg)
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.NewTracerProvider(cfg.Tracing.ServiceName, version, os.Stderr)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	// Web sessions always live in the local database, whichever driver
	// holds the content.
	store, err := openLocalStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	be, mediaDir, err := selectBackend(cfg, store, logger)
	if err != nil {
		return err
	}

	notifier := newNotifier(cfg, logger)
	defer notifier.Close()

	opts := web.Options{
		Config:   cfg,
		Backend:  be,
		Sessions: store,
		MediaDir: mediaDir,
		Logger:   logger.Named(logging.ComponentWeb),
		Version:  version,
	}
	if notifier.Enabled() {
		opts.Notifier = notifier
	}

	server, err := serveNewServerFn(opts)
	if err != nil {
		return err
	}
	logger.Info("starting site",
		zap.String("listen", cfg.Server.Listen),
		zap.String("backend", be.Name),
		zap.String("version", version),
	)
	return server.Start(ctx)
}

// selectBackend returns the content backend and, for the local driver, the
// directory served under /media/.
func selectBackend(cfg *config.Config, store *storage.Store, logger *zap.Logger) (backend.Backend, string, error) {
	switch cfg.ResolvedDriver() {
	case config.DriverHosted:
		client := hosted.New(hosted.Options{
			URL:     cfg.Backend.URL,
			AnonKey: cfg.Backend.AnonKey,
			Timeout: cfg.Backend.Timeout,
		})
		if !client.Configured() {
			logger.Warn("hosted store is not configured; remote calls will fail")
		}
		return client.Backend(), "", nil
	default:
		objects, err := storage.NewObjects(cfg.MediaDir(), cfg.Server.PublicURL)
		if err != nil {
			return backend.Backend{}, "", err
		}
		n, err := store.CountAdmins(context.Background())
		if err == nil && n == 0 {
			logger.Warn("no administrators exist yet; create one with `mlf admin create`")
		}
		return store.Backend(objects), objects.Root(), nil
	}
}

// newNotifier connects the configured change destinations. Failures only
// disable that destination.
func newNotifier(cfg *config.Config, logger *zap.Logger) *notify.Manager {
	log := logger.Named(logging.ComponentNotify)
	var publisher notify.Publisher
	if u := strings.TrimSpace(cfg.Notify.NATS.URL); u != "" {
		p, err := notify.NewNATSPublisher(notify.NATSConfig{
			URL:            u,
			Subject:        cfg.Notify.NATS.Subject,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			log.Warn("NATS publisher disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}
	var adapters []notify.Adapter
	if u := strings.TrimSpace(cfg.Notify.Slack.WebhookURL); u != "" {
		a, err := notify.NewSlackAdapter(notify.SlackConfig{WebhookURL: u, Channel: cfg.Notify.Slack.Channel})
		if err != nil {
			log.Warn("Slack notifications disabled", zap.Error(err))
		} else {
			adapters = append(adapters, a)
		}
	}
	return notify.NewManager(publisher, logger, adapters...)
}
