package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/zylofm/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ListStations Phase = iota
	ProbeStations
	ListRejected
	PurgeMedia
)

func (p Phase) String() string {
	switch p {
	case ListStations:
		return "list_stations"
	case ProbeStations:
		return "probe_stations"
	case ListRejected:
		return "list_rejected"
	case PurgeMedia:
		return "purge_media"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func listStationsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListStations,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d active stations", total),
	}
}

func probeResultUpdate(step, total int, res ProbeResult) ProgressUpdate {
	mark := "✓"
	detail := res.Latency.Round(time.Millisecond).String()
	if !res.Online {
		mark = "✗"
		detail = res.Reason
	}
	return ProgressUpdate{
		Phase:   ProbeStations,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%s)", step, total, mark, res.Station.Name, detail),
		Data:    res,
	}
}

func listRejectedUpdate(total int, cutoff time.Time) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListRejected,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d mixes rejected before %s", total, cutoff.Format(time.DateOnly)),
	}
}

func purgeUpdate(step, total int, mix *models.Mix, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   PurgeMedia,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, mix.Title, err),
		}
	}
	return ProgressUpdate{
		Phase:   PurgeMedia,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, mix.Title),
		Data:    mix,
	}
}
