package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/tasks"
)

type probeReport struct {
	Station    string    `json:"station"`
	StreamURL  string    `json:"stream_url"`
	Online     bool      `json:"online"`
	StatusCode int       `json:"status_code,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	Reason     string    `json:"reason,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// StationsProbe checks every active station once, or repeatedly with --watch.
func (r *Runner) StationsProbe(ctx context.Context, cmd *cli.Command) error {
	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	prober := tasks.NewStationProber(store.Stations, r.httpClient, tasks.ProbeOptsFromConfig(r.config.Stations), r.logger)

	if cmd.Bool("watch") {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		interval := r.config.Stations.ProbeIntervalDuration()
		r.logger.Info("watching stations", "interval", interval)

		progress := make(chan tasks.ProgressUpdate, 100)
		done := r.printProgress(progress)
		err := prober.Watch(ctx, interval, progress)
		close(progress)
		<-done
		return err
	}

	jsonOutput := cmd.Bool("json")

	var progress chan tasks.ProgressUpdate
	var done <-chan struct{}
	if !jsonOutput {
		progress = make(chan tasks.ProgressUpdate, 100)
		done = r.printProgress(progress)
	}

	summary, err := prober.ProbeAll(ctx, progress)
	if progress != nil {
		close(progress)
		<-done
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		reports := make([]probeReport, 0, len(summary.Results))
		for _, res := range summary.Results {
			reports = append(reports, probeReport{
				Station:    res.Station.Name,
				StreamURL:  res.Station.StreamURL,
				Online:     res.Online,
				StatusCode: res.StatusCode,
				LatencyMS:  res.Latency.Milliseconds(),
				Reason:     res.Reason,
				CheckedAt:  res.CheckedAt,
			})
		}
		return r.writeJSON(reports, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Station Probe Summary")
	r.writePlain("Total:   %d\n", summary.Total)
	r.writePlain("Online:  %d\n", summary.Online)
	r.writePlain("Offline: %d\n", summary.Offline)
	return nil
}
