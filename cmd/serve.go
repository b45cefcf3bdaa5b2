package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/auth"
	"github.com/desertthunder/zylofm/internal/server"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/tasks"
)

// Serve runs the API until interrupted, probing radio stations in the background.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("host") {
		r.config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		r.config.Server.Port = int(cmd.Int("port"))
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	srv, prober, err := r.buildServer()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", r.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.config.Server.Addr(), err)
	}

	if interval := r.config.Stations.ProbeIntervalDuration(); !cmd.Bool("no-probe") {
		go func() {
			if err := prober.Watch(ctx, interval, nil); err != nil {
				r.logger.Error("station watcher stopped", "error", err)
			}
		}()
	}

	if cmd.Bool("open") {
		url := fmt.Sprintf("http://%s/api/health", ln.Addr())
		go func() {
			if err := r.openURL(url); err != nil {
				r.logger.Warn("failed to open browser", "url", url, "error", err)
			}
		}()
	}

	return srv.Serve(ctx, ln)
}

// buildServer wires the services behind the API from the runner's config.
func (r *Runner) buildServer() (*server.Server, *tasks.StationProber, error) {
	store, err := r.migratedStore()
	if err != nil {
		return nil, nil, err
	}
	storage, err := r.mediaStorage()
	if err != nil {
		return nil, nil, err
	}

	var google *services.GoogleProvider
	if r.config.Auth.Google.Enabled() {
		google, err = services.NewGoogleProvider(r.config.Auth.Google, services.WithGoogleHTTPClient(r.httpClient))
		if err != nil {
			return nil, nil, err
		}
	} else {
		r.logger.Info("google sign-in disabled: no client credentials configured")
	}

	tokens := auth.NewTokenIssuerFromConfig(r.config.Auth)
	prober := tasks.NewStationProber(store.Stations, r.httpClient, tasks.ProbeOptsFromConfig(r.config.Stations), r.logger)

	srv := server.New(server.Options{
		Config:    r.config,
		Store:     store,
		Accounts:  tasks.NewAccounts(store.Users, tokens, r.logger),
		Moderator: tasks.NewModerator(store, r.logger),
		Publisher: tasks.NewPublisher(store, storage, tasks.UploadLimitsFromConfig(r.config.Uploads), r.logger),
		Prober:    prober,
		Storage:   storage,
		Google:    google,
		Logger:    r.logger,
	})
	return srv, prober, nil
}
