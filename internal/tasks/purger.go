package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
)

// PurgeResult reports which rejected mixes were cleaned up.
type PurgeResult struct {
	Cutoff     time.Time
	Candidates []*models.Mix
	Purged     int
	Failed     int
	DryRun     bool
}

// Purger frees storage held by mixes that stayed rejected.
type Purger struct {
	mixes   *repositories.MixRepository
	storage services.MediaStorage
	logger  *log.Logger
	now     func() time.Time
}

// NewPurger creates a [Purger].
func NewPurger(mixes *repositories.MixRepository, storage services.MediaStorage, logger *log.Logger) *Purger {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Purger{mixes: mixes, storage: storage, logger: logger, now: time.Now}
}

// Purge deletes the media of mixes rejected more than olderThan ago and soft-deletes the mixes.
//
// A mix whose media cannot be deleted is left in place so a later run retries it.
func (p *Purger) Purge(ctx context.Context, olderThan time.Duration, dryRun bool, progress chan<- ProgressUpdate) (*PurgeResult, error) {
	if olderThan < 0 {
		return nil, fmt.Errorf("%w: age must not be negative", shared.ErrInvalidArgument)
	}

	cutoff := p.now().Add(-olderThan)
	candidates, err := p.mixes.ListRejectedBefore(cutoff)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, listRejectedUpdate(len(candidates), cutoff))

	result := &PurgeResult{Cutoff: cutoff, Candidates: candidates, DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	for i, mix := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := deleteMedia(ctx, p.storage, p.logger, map[string]services.MediaKind{
			mix.AudioPublicID: services.MediaAudio,
			mix.CoverPublicID: services.MediaImage,
		})
		if err == nil {
			err = p.mixes.Delete(mix.ID)
		}

		if err != nil {
			result.Failed++
			p.logger.Error("failed to purge mix", "mix_id", mix.ID, "error", err)
		} else {
			result.Purged++
			p.logger.Info("mix purged", "mix_id", mix.ID)
		}
		sendProgress(progress, purgeUpdate(i+1, len(candidates), mix, err))
	}
	return result, nil
}
