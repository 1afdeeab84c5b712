// bridgecheck is a diagnostic tool for the host bridge: it dials the
// configured host channel, runs the registration handshake, probes a
// whitelisted endpoint, and prints what the host reports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talentwire/atsbridge/bridge"
	"github.com/talentwire/atsbridge/internal/config"
	"github.com/talentwire/atsbridge/internal/logging"
	"github.com/talentwire/atsbridge/wstransport"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, cfg.Debug)
	logger.Info("bridgecheck starting",
		slog.String("version", Version),
		slog.String("host", cfg.HostURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	origins, err := cfg.Origins()
	if err != nil {
		return fmt.Errorf("resolving allowed origins: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	transport, err := wstransport.Dial(dialCtx, cfg.HostURL, logger)
	if err != nil {
		return fmt.Errorf("connecting to host: %w", err)
	}
	defer transport.Close()

	client, err := bridge.New(bridge.Options{
		Transport:      transport,
		LaunchURL:      cfg.LaunchURL,
		AllowedOrigins: origins,
		Title:          cfg.AppTitle,
		Color:          cfg.AppColor,
		Debug:          cfg.Debug,
		Logger:         logger,
		OnReady: func() {
			logger.Info("host reported ready")
		},
		OnError: func(err error) {
			logger.Error("registration failed", slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return fmt.Errorf("building client: %w", err)
	}
	defer client.Close()

	client.On(bridge.EventUpdate, func(payload any) {
		logger.Info("host update", slog.Any("payload", payload))
	})
	client.On(bridge.EventCustom, func(payload any) {
		logger.Info("host custom event", slog.Any("payload", payload))
	})

	if err := client.Register(ctx, bridge.RegistrationInfo{}); err != nil {
		return fmt.Errorf("registering with host: %w", err)
	}

	creds := client.Credentials()
	logger.Info("session credentials",
		slog.String("corporation_id", creds.CorporationID),
		slog.String("user_id", creds.UserID),
		slog.Bool("rest_token_present", creds.RestToken != ""),
	)

	reply, err := client.HTTPGet(ctx, "/services/ping")
	if err != nil {
		logger.Warn("probe GET failed", slog.String("error", err.Error()))
	} else {
		logger.Info("probe GET ok", slog.String("reply", string(reply)))
	}

	logger.Info("listening for host events, ctrl-c to exit")
	<-ctx.Done()
	return nil
}
