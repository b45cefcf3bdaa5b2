package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/zylofm/internal/formatter"
	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
)

func mixCriteria(cmd *cli.Command) (map[string]any, error) {
	criteria := map[string]any{"search": cmd.String("search")}
	if value := cmd.String("status"); value != "" {
		status, err := models.ParseMixStatus(value)
		if err != nil {
			return nil, err
		}
		criteria["status"] = status
	}
	return criteria, nil
}

// MixesList prints mixes as a table or JSON.
func (r *Runner) MixesList(ctx context.Context, cmd *cli.Command) error {
	criteria, err := mixCriteria(cmd)
	if err != nil {
		return err
	}
	criteria["limit"] = int(cmd.Int("limit"))

	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	mixes, err := store.Mixes.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(mixes, cmd.Bool("pretty"))
	}

	if len(mixes) == 0 {
		return r.writePlain("No mixes found\n")
	}

	tw := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDJ\tGENRE\tSTATUS\tLENGTH\tPLAYS")
	for _, mix := range mixes {
		title := mix.Title
		if mix.Featured {
			title += " ★"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			mix.ID, title, mix.DJName, mix.GenreName, mix.Status, shared.FormatDuration(mix.DurationSeconds), mix.PlayCount)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// MixesApprove approves a pending or rejected mix.
func (r *Runner) MixesApprove(ctx context.Context, cmd *cli.Command) error {
	return r.reviewMix(ctx, cmd, func(m *tasks.Moderator, id, reviewerID string) (*models.Mix, error) {
		return m.ApproveMix(ctx, id, reviewerID)
	})
}

// MixesReject rejects a mix with an optional reason.
func (r *Runner) MixesReject(ctx context.Context, cmd *cli.Command) error {
	reason := cmd.String("reason")
	return r.reviewMix(ctx, cmd, func(m *tasks.Moderator, id, reviewerID string) (*models.Mix, error) {
		return m.RejectMix(ctx, id, reviewerID, reason)
	})
}

func (r *Runner) reviewMix(ctx context.Context, cmd *cli.Command, apply func(*tasks.Moderator, string, string) (*models.Mix, error)) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: mix id is required", shared.ErrMissingArgument)
	}

	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	reviewer, err := r.reviewer(store, cmd.String("as"))
	if err != nil {
		return err
	}
	reviewerID := ""
	if reviewer != nil {
		reviewerID = reviewer.ID
	}

	mix, err := apply(tasks.NewModerator(store, r.logger), id, reviewerID)
	if err != nil {
		return err
	}

	if mix.RejectionReason != "" {
		return r.writePlain("✓ %q is now %s: %s\n", mix.Title, mix.Status, mix.RejectionReason)
	}
	return r.writePlain("✓ %q is now %s\n", mix.Title, mix.Status)
}

// MixesFeature toggles an approved mix on the featured list.
func (r *Runner) MixesFeature(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: mix id is required", shared.ErrMissingArgument)
	}

	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	mix, err := tasks.NewModerator(store, r.logger).FeatureMix(ctx, id, !cmd.Bool("off"))
	if err != nil {
		return err
	}

	if mix.Featured {
		return r.writePlain("✓ %q is featured\n", mix.Title)
	}
	return r.writePlain("✓ %q is no longer featured\n", mix.Title)
}

// MixesPurge deletes media of mixes rejected before the cutoff.
func (r *Runner) MixesPurge(ctx context.Context, cmd *cli.Command) error {
	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	storage, err := r.mediaStorage()
	if err != nil {
		return err
	}

	purger := tasks.NewPurger(store.Mixes, storage, r.logger)

	progress := make(chan tasks.ProgressUpdate, 100)
	done := r.printProgress(progress)
	result, err := purger.Purge(ctx, cmd.Duration("older-than"), cmd.Bool("dry-run"), progress)
	close(progress)
	<-done

	if err != nil {
		return err
	}

	if result.DryRun {
		r.writePlainln("Dry run: %d mix(es) rejected before %s", len(result.Candidates), result.Cutoff.Format("2006-01-02 15:04"))
		for _, mix := range result.Candidates {
			r.writePlain("  %s  %s\n", mix.ID, mix.Title)
		}
		return nil
	}

	r.writePlainln("✓ Purged %d of %d mix(es)", result.Purged, len(result.Candidates))
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d mix(es) could not be purged", shared.ErrServiceUnavailable, result.Failed)
	}
	return nil
}

// ExportMixes writes a mix report to a file or stdout.
func (r *Runner) ExportMixes(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	criteria, err := mixCriteria(cmd)
	if err != nil {
		return err
	}

	store, err := r.migratedStore()
	if err != nil {
		return err
	}
	mixes, err := store.Mixes.List(criteria)
	if err != nil {
		return err
	}

	title := "All mixes"
	if status, ok := criteria["status"].(models.MixStatus); ok {
		title = fmt.Sprintf("Mixes: %s", status)
	}
	report := formatter.NewMixReport(title, mixes)

	output := cmd.String("output")
	if output == "-" {
		return formatter.Write(r.output, format, report)
	}

	path, err := formatter.WriteFile(format, report, output)
	if err != nil {
		return err
	}
	r.logger.Info("exported mixes", "count", len(mixes), "format", format, "path", path)
	return r.writePlain("✓ Exported %d mix(es) to %s\n", len(mixes), path)
}
