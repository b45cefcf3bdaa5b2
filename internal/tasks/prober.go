package tasks

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/shared"
)

const playlistScanLimit = 64 << 10

// ProbeOpts contains configuration for station health checks.
type ProbeOpts struct {
	Workers   int           // Concurrent workers (default: 4)
	RateLimit float64       // Probes started per second (default: 2)
	Timeout   time.Duration // Per-station timeout (default: 10s)
}

// ProbeOptsFromConfig converts the [stations] config section.
func ProbeOptsFromConfig(cfg shared.StationsConfig) ProbeOpts {
	return ProbeOpts{Workers: cfg.ProbeWorkers, RateLimit: cfg.ProbeRate, Timeout: cfg.ProbeTimeoutDuration()}
}

// ProbeResult is the outcome of checking one station.
type ProbeResult struct {
	Station    *models.RadioStation
	Online     bool
	StatusCode int
	Latency    time.Duration
	Reason     string // Reason explains an offline result.
	CheckedAt  time.Time
}

// ProbeSummary aggregates a probe run.
type ProbeSummary struct {
	Total   int
	Online  int
	Offline int
	Results []ProbeResult
}

// StationProber checks that radio streams are reachable and records the outcome.
type StationProber struct {
	stations *repositories.StationRepository
	client   *http.Client
	opts     ProbeOpts
	logger   *log.Logger
}

// NewStationProber creates a [StationProber], filling in option defaults.
func NewStationProber(stations *repositories.StationRepository, client *http.Client, opts ProbeOpts, logger *log.Logger) *StationProber {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > 16 {
		opts.Workers = 16
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StationProber{stations: stations, client: client, opts: opts, logger: logger}
}

// ProbeAll checks every active station concurrently with rate limiting and progress tracking.
//
// Each result is written back with [repositories.StationRepository.RecordProbe].
func (p *StationProber) ProbeAll(ctx context.Context, progress chan<- ProgressUpdate) (*ProbeSummary, error) {
	stations, err := p.stations.ListActive()
	if err != nil {
		return nil, err
	}
	sendProgress(progress, listStationsUpdate(len(stations)))

	summary := &ProbeSummary{Total: len(stations), Results: make([]ProbeResult, 0, len(stations))}
	if len(stations) == 0 {
		return summary, nil
	}

	limiter := rate.NewLimiter(rate.Limit(p.opts.RateLimit), 1)
	jobs := make(chan *models.RadioStation, len(stations))
	results := make(chan ProbeResult, len(stations))

	var wg sync.WaitGroup
	for range p.opts.Workers {
		wg.Add(1)
		go p.probeWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, station := range stations {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- station
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if err := p.stations.RecordProbe(res.Station.ID, res.Online, res.CheckedAt); err != nil {
			p.logger.Error("failed to record probe", "station", res.Station.Slug, "error", err)
		}

		summary.Results = append(summary.Results, res)
		if res.Online {
			summary.Online++
		} else {
			summary.Offline++
			p.logger.Warn("station offline", "station", res.Station.Slug, "reason", res.Reason)
		}
		sendProgress(progress, probeResultUpdate(len(summary.Results), summary.Total, res))
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *StationProber) probeWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan *models.RadioStation, results chan<- ProbeResult) {
	defer wg.Done()
	for station := range jobs {
		results <- p.Probe(ctx, station)
	}
}

// Probe requests the stream once. HLS playlists must start with #EXTM3U; progressive streams
// only need a successful status and a first chunk of data.
func (p *StationProber) Probe(ctx context.Context, station *models.RadioStation) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	started := time.Now()
	res := ProbeResult{Station: station, CheckedAt: started.UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, station.StreamURL, nil)
	if err != nil {
		res.Reason = fmt.Sprintf("invalid url: %v", err)
		return res
	}
	req.Header.Set("User-Agent", "zylofm-prober/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Reason = fmt.Sprintf("status %d", resp.StatusCode)
		return res
	}

	if station.Kind() == models.StreamHLS {
		ok, reason := checkPlaylist(resp.Body)
		if !ok {
			res.Reason = reason
			return res
		}
	} else {
		buf := make([]byte, 1)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			res.Reason = fmt.Sprintf("no stream data: %v", err)
			return res
		}
	}

	res.Online = true
	res.Latency = time.Since(started)
	return res
}

func checkPlaylist(body io.Reader) (bool, string) {
	scanner := bufio.NewScanner(io.LimitReader(body, playlistScanLimit))
	for scanner.Scan() {
		line := bytes.TrimSpace(bytes.TrimPrefix(scanner.Bytes(), []byte("\xef\xbb\xbf")))
		if len(line) == 0 {
			continue
		}
		if bytes.Equal(line, []byte("#EXTM3U")) {
			return true, ""
		}
		return false, "playlist does not start with #EXTM3U"
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Sprintf("failed to read playlist: %v", err)
	}
	return false, "empty playlist"
}

// Watch probes all stations every interval until ctx is cancelled.
func (p *StationProber) Watch(ctx context.Context, interval time.Duration, progress chan<- ProgressUpdate) error {
	if interval <= 0 {
		return fmt.Errorf("%w: probe interval must be positive", shared.ErrInvalidArgument)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := p.ProbeAll(ctx, progress)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("station probe failed", "error", err)
		} else if summary != nil {
			p.logger.Info("stations probed", "total", summary.Total, "online", summary.Online, "offline", summary.Offline)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
