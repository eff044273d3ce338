package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/services"
	"github.com/desertthunder/cratedig/internal/shared"
)

const historyPageSize = 100

// HistoryReader pages through history and flags or removes records.
type HistoryReader interface {
	List(limit, offset int) ([]*models.RollRecord, error)
	MarkMissing(id string) error
	Delete(id string) error
}

// ReconcileOpts contains configuration for history reconciliation.
type ReconcileOpts struct {
	Prune      bool    // Delete records whose playlist is gone instead of flagging them
	RateLimit  float64 // Existence checks per second (default: 2)
	NumWorkers int     // Concurrent checks (default: 2)
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Checked      int      `json:"checked"`      // Records whose playlist was conclusively checked
	Missing      int      `json:"missing"`      // Records whose playlist no longer exists
	Inconclusive int      `json:"inconclusive"` // Records in batches whose check failed; left untouched
	Failed       int      `json:"failed"`       // Records that could not be updated
	MissingIDs   []string `json:"missingIds"`   // Roll ids whose playlist is gone
}

type checkJob struct {
	ids []string
}

type checkResult struct {
	ids    []string
	exists map[string]bool
	err    error
}

// Reconciler checks saved rolls against the playlists that still exist on YouTube.
type Reconciler struct {
	checker services.ExistenceChecker
	history HistoryReader
	logger  *log.Logger
	opts    ReconcileOpts
}

// NewReconciler creates a Reconciler.
func NewReconciler(checker services.ExistenceChecker, history HistoryReader, logger *log.Logger, opts ReconcileOpts) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.NumWorkers > 5 {
		opts.NumWorkers = 5
	}
	return &Reconciler{checker: checker, history: history, logger: logger, opts: opts}
}

// Reconcile checks every record with a playlist in batches of [services.MaxExistenceBatch].
//
// A failed batch is counted as inconclusive and its records are left as they are, so a transient
// API failure never flags playlists as missing.
func (r *Reconciler) Reconcile(ctx context.Context, progress chan<- ProgressUpdate) (*ReconcileResult, error) {
	if r.checker == nil {
		return nil, fmt.Errorf("%w: playlist checker not initialized", shared.ErrServiceUnavailable)
	}

	byPlaylist, ids, err := r.loadRecords()
	if err != nil {
		return nil, err
	}
	sendProgress(progress, loadHistoryUpdate(len(ids)))

	result := &ReconcileResult{}
	batches := services.Chunk(ids, services.MaxExistenceBatch)
	if len(batches) == 0 {
		return result, nil
	}

	limiter := rate.NewLimiter(rate.Limit(r.opts.RateLimit), 1)
	jobs := make(chan checkJob, len(batches))
	results := make(chan checkResult, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < r.opts.NumWorkers; i++ {
		wg.Add(1)
		go r.checkWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, batch := range batches {
			if err := limiter.Wait(ctx); err != nil {
				results <- checkResult{ids: batch, err: err}
				continue
			}
			jobs <- checkJob{ids: batch}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++

		if res.err != nil {
			r.logger.Warn("playlist check inconclusive", "playlists", len(res.ids), "err", res.err)
			for _, id := range res.ids {
				result.Inconclusive += len(byPlaylist[id])
			}
		} else {
			for _, id := range res.ids {
				records := byPlaylist[id]
				result.Checked += len(records)
				if res.exists[id] {
					continue
				}
				for _, rec := range records {
					result.Missing++
					result.MissingIDs = append(result.MissingIDs, rec.ID)
					if err := r.apply(rec); err != nil {
						r.logger.Warn("failed to update roll", "roll", rec.ID, "err", err)
						result.Failed++
					}
				}
			}
		}

		sendProgress(progress, checkPlaylistsUpdate(completed, len(batches), result.Missing))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// loadRecords collects every record that has a playlist, grouped by playlist id.
func (r *Reconciler) loadRecords() (map[string][]*models.RollRecord, []string, error) {
	byPlaylist := make(map[string][]*models.RollRecord)
	var ids []string

	for offset := 0; ; offset += historyPageSize {
		page, err := r.history.List(historyPageSize, offset)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load history: %w", err)
		}

		for _, rec := range page {
			if rec.PlaylistID == "" {
				continue
			}
			if _, ok := byPlaylist[rec.PlaylistID]; !ok {
				ids = append(ids, rec.PlaylistID)
			}
			byPlaylist[rec.PlaylistID] = append(byPlaylist[rec.PlaylistID], rec)
		}

		if len(page) < historyPageSize {
			break
		}
	}
	return byPlaylist, ids, nil
}

func (r *Reconciler) apply(rec *models.RollRecord) error {
	if r.opts.Prune {
		return r.history.Delete(rec.ID)
	}
	if rec.PlaylistMissing {
		return nil
	}
	return r.history.MarkMissing(rec.ID)
}

// checkWorker is a worker goroutine that checks playlist batches from the jobs channel.
func (r *Reconciler) checkWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan checkJob, results chan<- checkResult) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- checkResult{ids: job.ids, err: ctx.Err()}
			continue
		default:
		}

		exists, err := r.checker.CheckExist(ctx, job.ids)
		results <- checkResult{ids: job.ids, exists: exists, err: err}
	}
}
