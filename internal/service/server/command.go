package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	api "github.com/oshokin/doorbell/internal/api/http/door"
	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/metrics"
	"github.com/oshokin/doorbell/internal/notify"
	"github.com/oshokin/doorbell/internal/service/coordinator"
)

// Options controls the doorbell-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured listen address.
	ListenAddress string
	// Listener, when set, is served instead of opening ListenAddress.
	Listener net.Listener
}

const (
	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second
	// readHeaderTimeout bounds reading request headers.
	readHeaderTimeout = 10 * time.Second
	// writeTimeoutMargin is added to the poll cap to form the write timeout.
	writeTimeoutMargin = 10 * time.Second
)

// Run loads configuration and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "doorbell-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	return Serve(ctx, settings, opts.Listener)
}

// Serve runs the server with already loaded settings. When lis is nil the
// configured listen address is opened.
func Serve(ctx context.Context, settings *config.Config, lis net.Listener) error {
	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.WarnKV(ctx, "Unknown log level, keeping current", "log_level", settings.LogLevel)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder := metrics.NewPrometheusRecorder(registry)

	notifier, err := newNotifier(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise notifier: %w", err)
	}

	dispatcher := notify.NewDispatcher(
		notifier,
		notify.WithDeliveryTimeout(settings.NotifyTimeout),
		notify.WithQueueSize(settings.NotifyQueueSize),
		notify.WithDispatcherRecorder(recorder),
	)

	door := coordinator.New(
		dispatcher,
		coordinator.WithRecorder(recorder),
		coordinator.WithOpenWindow(settings.OpenWindow),
		coordinator.WithConfirmWindow(settings.ConfirmWindow),
	)

	handler := api.NewServer(door, api.Settings{
		AllowedCallers:     settings.TargetPhones,
		DefaultPollTimeout: settings.DefaultPollTimeout,
		MaxPollTimeout:     settings.MaxPollTimeout,
		Metrics:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	if lis == nil {
		lc := net.ListenConfig{}

		lis, err = lc.Listen(ctx, "tcp", settings.ListenAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
		}
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      settings.MaxPollTimeout + writeTimeoutMargin,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	logger.InfoKV(ctx, "Doorbell server listening",
		"listen_address", lis.Addr().String(),
		"recipients", len(settings.TargetPhones),
		"open_window", settings.OpenWindow,
		"confirm_window", settings.ConfirmWindow,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		dispatcher.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		// Long-polls observe the cancelled base context and punt, so
		// shutdown does not wait for their timeouts.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}

		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// newNotifier picks Twilio when credentials are configured and the log
// notifier otherwise.
func newNotifier(ctx context.Context, settings *config.Config) (notify.Notifier, error) {
	if !settings.Twilio.Enabled() {
		logger.WarnKV(ctx, "Twilio credentials are not configured, notifications will only be logged")

		return notify.NewLogNotifier(settings.TargetPhones), nil
	}

	notifier, err := notify.NewTwilioNotifier(settings.Twilio, settings.TargetPhones, settings.NotifyTimeout)
	if err != nil {
		return nil, err
	}

	return notifier, nil
}
