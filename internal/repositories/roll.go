package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// DefaultPageSize is the number of history records returned when no limit is given.
const DefaultPageSize = 20

const rollColumns = `id, sequence, dice_mode, output_size, seeds_used, seeds_failed, tracks_found, track_count,
	playlist_id, playlist_url, thumbnail_url, playlist_missing, rolled_at`

// RollRepository is the append-only history of rolls that were saved as playlists.
type RollRepository struct {
	db *sql.DB
}

// NewRollRepository creates a new RollRepository with the given database connection
func NewRollRepository(db *sql.DB) *RollRepository {
	return &RollRepository{db: db}
}

// Append stores record with a generated ID and sequence. A zero RolledAt is set to now.
func (r *RollRepository) Append(record *models.RollRecord) (*models.RollRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	stored := *record
	stored.ID = shared.GenerateID()
	if stored.RolledAt.IsZero() {
		stored.RolledAt = time.Now()
	}
	stored.RolledAt = stored.RolledAt.UTC()

	query := `
		INSERT INTO rolls (` + rollColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := nextSequence(tx, "rolls")
		if err != nil {
			return err
		}
		stored.Sequence = sequence

		_, err = tx.Exec(query,
			stored.ID,
			stored.Sequence,
			stored.Mode,
			stored.OutputSize,
			stored.SeedsUsed,
			stored.SeedsFailed,
			stored.TracksFound,
			stored.TrackCount,
			stored.PlaylistID,
			stored.PlaylistURL,
			stored.ThumbnailURL,
			stored.PlaylistMissing,
			stored.RolledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert roll: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// Get retrieves a roll by ID
func (r *RollRepository) Get(id string) (*models.RollRecord, error) {
	row := r.db.QueryRow("SELECT "+rollColumns+" FROM rolls WHERE id = ?", id)

	record, err := scanRoll(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRollNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan roll: %w", err)
	}
	return record, nil
}

// List returns a page of history, newest first. A non-positive limit uses [DefaultPageSize].
func (r *RollRepository) List(limit, offset int) ([]*models.RollRecord, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + rollColumns + `
		FROM rolls
		ORDER BY rolled_at DESC, sequence DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rolls: %w", err)
	}
	defer rows.Close()

	var records []*models.RollRecord
	for rows.Next() {
		record, err := scanRoll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roll: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// Count returns the number of rolls in history.
func (r *RollRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM rolls").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rolls: %w", err)
	}
	return n, nil
}

// Delete permanently removes a roll from history.
func (r *RollRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM rolls WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete roll: %w", err)
	}
	return affectedOne(result, fmt.Errorf("%w: %s", shared.ErrRollNotFound, id))
}

// MarkMissing flags a roll whose playlist no longer exists on YouTube.
func (r *RollRepository) MarkMissing(id string) error {
	result, err := r.db.Exec("UPDATE rolls SET playlist_missing = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to mark roll missing: %w", err)
	}
	return affectedOne(result, fmt.Errorf("%w: %s", shared.ErrRollNotFound, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoll(s scanner) (*models.RollRecord, error) {
	var (
		record models.RollRecord
		mode   string
	)

	err := s.Scan(
		&record.ID,
		&record.Sequence,
		&mode,
		&record.OutputSize,
		&record.SeedsUsed,
		&record.SeedsFailed,
		&record.TracksFound,
		&record.TrackCount,
		&record.PlaylistID,
		&record.PlaylistURL,
		&record.ThumbnailURL,
		&record.PlaylistMissing,
		&record.RolledAt,
	)
	if err != nil {
		return nil, err
	}

	record.Mode = models.DiceMode(mode)
	return &record, nil
}
