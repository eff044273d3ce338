// package tasks implements the roll pipeline: seed sampling, recommendation, deduplication, and playlist assembly.
package tasks

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cratedig/internal/dice"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

// RollEngine turns a [models.RollRequest] into a bounded, deduplicated preview.
//
// Each roll takes a new generation token. A roll whose token is no longer current when its
// recommendations arrive is discarded with [shared.ErrStaleRoll].
type RollEngine struct {
	recommender services.RecommendationService
	sampler     *dice.Sampler
	logger      *log.Logger
	generation  atomic.Uint64
}

// NewRollEngine creates a RollEngine. A nil sampler uses [dice.Default].
func NewRollEngine(recommender services.RecommendationService, sampler *dice.Sampler, logger *log.Logger) *RollEngine {
	if sampler == nil {
		sampler = dice.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RollEngine{recommender: recommender, sampler: sampler, logger: logger}
}

// Current returns the generation of the most recent roll.
func (e *RollEngine) Current() uint64 {
	return e.generation.Load()
}

// IsCurrent reports whether gen belongs to the most recent roll.
func (e *RollEngine) IsCurrent(gen uint64) bool {
	return e.generation.Load() == gen
}

// Invalidate discards any roll in flight, for example when the user changes the roll settings.
func (e *RollEngine) Invalidate() uint64 {
	return e.generation.Add(1)
}

// Roll samples seeds, asks the recommender for related tracks, and returns at most req.OutputSize unique tracks.
//
// Nothing is persisted. Errors:
//   - [shared.ErrInvalidOutputSize], [shared.ErrInvalidMode], [shared.ErrEmptyLibrary] : rejected before any work
//   - [shared.ErrRecommendationService] : the recommender failed
//   - [shared.ErrStaleRoll] : a newer roll started while this one was waiting
func (e *RollEngine) Roll(ctx context.Context, progress chan<- ProgressUpdate, req models.RollRequest) (*models.RollResult, error) {
	if !models.ValidOutputSize(req.OutputSize) {
		return nil, fmt.Errorf("%w: %d", shared.ErrInvalidOutputSize, req.OutputSize)
	}
	mode, err := models.ParseDiceMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	if len(req.Library) == 0 {
		return nil, shared.ErrEmptyLibrary
	}
	if e.recommender == nil {
		return nil, fmt.Errorf("%w: recommendation service not initialized", shared.ErrServiceUnavailable)
	}

	gen := e.generation.Add(1)
	logger := shared.WithLogger(e.logger, "generation", gen, "mode", mode, "size", req.OutputSize)

	sendProgress(progress, sampleSeedsUpdate(mode, len(req.Library)))
	seeds, err := e.sampler.RollSeeds(req.Library, req.OutputSize, mode)
	if err != nil {
		return nil, err
	}

	querySeeds := make([]models.Seed, len(seeds))
	for i, s := range seeds {
		querySeeds[i] = s.Seed()
	}

	sendProgress(progress, recommendUpdate(seeds))
	logger.Debug("requesting recommendations", "seeds", len(seeds), "pool", len(req.Library))

	rec, err := e.recommender.Recommend(ctx, querySeeds, req.OutputSize)
	if !e.IsCurrent(gen) {
		logger.Debug("discarding stale roll", "current", e.Current())
		return nil, shared.ErrStaleRoll
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRecommendationService, err)
	}

	unique := DedupeByVideoID(rec.Candidates)
	sendProgress(progress, dedupeUpdate(len(rec.Candidates), len(unique)))

	raw := rec.RawFound
	if raw < len(rec.Candidates) {
		raw = len(rec.Candidates)
	}

	result := &models.RollResult{
		Mode:            mode,
		OutputSize:      req.OutputSize,
		SeedsUsed:       rec.SeedsUsed,
		SeedsFailed:     rec.SeedsFailed,
		RawFound:        raw,
		CandidatesFound: len(unique),
		Tracks:          unique[:min(len(unique), req.OutputSize)],
		Seeds:           seeds,
		Generation:      gen,
	}

	logger.Info("roll complete", "seeds_used", result.SeedsUsed, "seeds_failed", result.SeedsFailed,
		"found", result.CandidatesFound, "tracks", len(result.Tracks))
	return result, nil
}

// DedupeByVideoID keeps the first occurrence of each video id, in order. Tracks without an id are dropped.
func DedupeByVideoID(tracks []models.RecommendedTrack) []models.RecommendedTrack {
	seen := make(map[string]struct{}, len(tracks))
	unique := make([]models.RecommendedTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.VideoID == "" {
			continue
		}
		if _, dup := seen[t.VideoID]; dup {
			continue
		}
		seen[t.VideoID] = struct{}{}
		unique = append(unique, t)
	}
	return unique
}
