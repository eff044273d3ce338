package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/cratedig/internal/formatter"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/repositories"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
	"github.com/urfave/cli/v3"
)

// HistoryList prints a page of saved rolls, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return err
	}

	limit := cmd.Int("limit")
	if limit <= 0 {
		limit = repositories.DefaultPageSize
	}
	offset := cmd.Int("offset")

	records, err := r.rolls.List(limit, offset)
	if err != nil {
		return err
	}
	total, err := r.rolls.Count()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Rolls  []*models.RollRecord `json:"rolls"`
			Total  int                  `json:"total"`
			Limit  int                  `json:"limit"`
			Offset int                  `json:"offset"`
		}{records, total, limit, offset}, true)
	}

	if len(records) == 0 {
		return r.writePlain("No rolls saved yet.\n")
	}
	if err := formatter.HistoryTable(r.output, records, time.Now()); err != nil {
		return err
	}
	if shown := offset + len(records); shown < total {
		r.writePlainln("Showing %d-%d of %d. Use --offset %d for more.", offset+1, shown, total, shown)
	}
	return nil
}

// HistoryShow prints a single saved roll.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	record, err := r.findRoll(cmd.StringArg("id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(record, true)
	}

	r.writePlain("ID: %s\n", record.ID)
	r.writePlain("Rolled: %s\n", record.RolledAt.Local().Format(time.RFC1123))
	r.writePlain("Mode: %s\n", record.Mode.Label())
	r.writePlain("Tracks: %d of %d found (requested %d)\n", record.TrackCount, record.TracksFound, record.OutputSize)
	r.writePlain("Seeds: %d used, %d failed\n", record.SeedsUsed, record.SeedsFailed)
	r.writePlain("Playlist: %s\n", record.PlaylistURL)
	if record.PlaylistMissing {
		r.writePlain("⚠ The playlist no longer exists on YouTube\n")
	}
	return nil
}

// HistoryDelete removes a saved roll. The playlist itself is left alone.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	record, err := r.findRoll(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	if err := r.rolls.Delete(record.ID); err != nil {
		return err
	}

	r.logger.Info("roll deleted", "id", record.ID)
	return r.writePlain("✓ Deleted roll %s\n", record.ID)
}

// HistoryCheck verifies that each saved playlist still exists and flags (or prunes) the ones that don't.
func (r *Runner) HistoryCheck(ctx context.Context, cmd *cli.Command) error {
	checker, err := r.youtubeService(ctx)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	reconciler := tasks.NewReconciler(checker, r.rolls, shared.WithLogger(r.logger, "component", "reconcile"), tasks.ReconcileOpts{
		Prune:     cmd.Bool("prune"),
		RateLimit: r.config.Roll.CheckRate,
	})

	progressCh, stop := r.progress(asJSON)
	result, err := reconciler.Reconcile(ctx, progressCh)
	stop()
	if err != nil {
		return err
	}

	if asJSON {
		return r.writeJSON(result, true)
	}

	r.writePlainln("✓ Checked %d rolls", result.Checked)
	if result.Missing > 0 {
		verb := "Flagged"
		if cmd.Bool("prune") {
			verb = "Removed"
		}
		r.writePlain("  %s %d rolls whose playlist was deleted\n", verb, result.Missing)
	}
	if result.Inconclusive > 0 {
		r.writePlain("⚠ %d rolls could not be checked and were left unchanged\n", result.Inconclusive)
	}
	if result.Failed > 0 {
		r.writePlain("⚠ %d rolls could not be updated\n", result.Failed)
	}
	return nil
}

// findRoll looks up a roll by its full id or by a unique prefix, as printed by history list.
func (r *Runner) findRoll(id string) (*models.RollRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: roll id", shared.ErrMissingArgument)
	}
	if _, err := r.database(); err != nil {
		return nil, err
	}

	record, err := r.rolls.Get(id)
	if err == nil {
		return record, nil
	}

	total, countErr := r.rolls.Count()
	if countErr != nil {
		return nil, countErr
	}
	records, listErr := r.rolls.List(total, 0)
	if listErr != nil {
		return nil, listErr
	}

	var match *models.RollRecord
	for _, rec := range records {
		if !strings.HasPrefix(rec.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %q matches more than one roll", shared.ErrInvalidArgument, id)
		}
		match = rec
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}
