package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
)

// Stats summarizes platform activity for the admin dashboard.
type Stats struct {
	Users           map[string]int `json:"users"`
	Mixes           map[string]int `json:"mixes"`
	PendingRequests int            `json:"pending_dj_requests"`
	TotalPlays      int            `json:"total_plays"`
	Genres          int            `json:"genres"`
	Stations        int            `json:"stations"`
	StationsOnline  int            `json:"stations_online"`
	GeneratedAt     time.Time      `json:"generated_at"`
}

// CollectStats gathers counts across the store.
func CollectStats(ctx context.Context, store *repositories.Store) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users, err := store.Users.CountByRole()
	if err != nil {
		return nil, err
	}
	mixes, err := store.Mixes.CountByStatus()
	if err != nil {
		return nil, err
	}
	pending, err := store.Requests.CountPending()
	if err != nil {
		return nil, err
	}
	plays, err := store.Mixes.TotalPlays()
	if err != nil {
		return nil, err
	}
	genres, err := store.Genres.List(nil)
	if err != nil {
		return nil, err
	}
	stations, err := store.Stations.List(nil)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Users:           make(map[string]int, len(users)),
		Mixes:           make(map[string]int, len(mixes)),
		PendingRequests: pending,
		TotalPlays:      plays,
		Genres:          len(genres),
		Stations:        len(stations),
		GeneratedAt:     time.Now().UTC(),
	}
	for role, n := range users {
		stats.Users[role.String()] = n
	}
	for status, n := range mixes {
		stats.Mixes[string(status)] = n
	}
	for _, s := range stations {
		if s.Online {
			stats.StationsOnline++
		}
	}
	return stats, nil
}

// deleteMedia removes each non-empty public id, returning the first failure after trying all.
func deleteMedia(ctx context.Context, storage services.MediaStorage, logger *log.Logger, assets map[string]services.MediaKind) error {
	var firstErr error
	for publicID, kind := range assets {
		if publicID == "" {
			continue
		}
		if err := storage.Delete(ctx, publicID, kind); err != nil {
			logger.Warn("failed to delete media", "public_id", publicID, "backend", storage.Name(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete %s: %w", publicID, err)
			}
		}
	}
	return firstErr
}
