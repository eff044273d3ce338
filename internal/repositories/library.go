package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// LibraryRepository stores the user's single active library.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new LibraryRepository with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Load returns the active library with its songs in upload order, or nil when none has been uploaded.
func (r *LibraryRepository) Load() (*models.Library, error) {
	query := `
		SELECT id, filename, song_count, artist_count, uploaded_at, updated_at
		FROM libraries
		ORDER BY uploaded_at DESC
		LIMIT 1
	`

	lib := &models.Library{}
	err := r.db.QueryRow(query).Scan(&lib.ID, &lib.Filename, &lib.SongCount, &lib.ArtistCount, &lib.UploadedAt, &lib.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT artist, title, genre
		FROM library_songs
		WHERE library_id = ?
		ORDER BY position ASC
	`, lib.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query library songs: %w", err)
	}
	defer rows.Close()

	lib.Songs = make([]models.Track, 0, lib.SongCount)
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.Artist, &t.Title, &t.Genre); err != nil {
			return nil, fmt.Errorf("failed to scan library song: %w", err)
		}
		lib.Songs = append(lib.Songs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lib, nil
}

// Replace discards any existing library and stores songs as the new active library in one transaction.
func (r *LibraryRepository) Replace(filename string, songs []models.Track) (*models.Library, error) {
	now := time.Now().UTC()
	lib := &models.Library{
		ID:          shared.GenerateID(),
		Filename:    filename,
		Songs:       songs,
		SongCount:   len(songs),
		ArtistCount: models.CountArtists(songs),
		UploadedAt:  now,
		UpdatedAt:   now,
	}

	if err := lib.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	err := withTx(r.db, func(tx *sql.Tx) error {
		if err := clearLibrary(tx); err != nil {
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO libraries (id, filename, song_count, artist_count, uploaded_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, lib.ID, lib.Filename, lib.SongCount, lib.ArtistCount, lib.UploadedAt, lib.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert library: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO library_songs (library_id, position, artist, title, genre)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare song insert: %w", err)
		}
		defer stmt.Close()

		for i, s := range songs {
			if _, err := stmt.Exec(lib.ID, i, s.Artist, s.Title, s.Genre); err != nil {
				return fmt.Errorf("failed to insert song %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lib, nil
}

// Clear removes the active library.
func (r *LibraryRepository) Clear() error {
	return withTx(r.db, clearLibrary)
}

func clearLibrary(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM library_songs"); err != nil {
		return fmt.Errorf("failed to clear library songs: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM libraries"); err != nil {
		return fmt.Errorf("failed to clear library: %w", err)
	}
	return nil
}
