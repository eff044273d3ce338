package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/cratedig/internal/shared"
)

// Connection describes the stored YouTube connection without its secrets.
type Connection struct {
	Email       string    `json:"email"`
	Expiry      time.Time `json:"expiry"`
	HasRefresh  bool      `json:"hasRefresh"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

// TokenRepository stores the single user's YouTube OAuth token.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Load returns the stored token, or [shared.ErrNotAuthenticated] when YouTube was never connected.
func (r *TokenRepository) Load() (*oauth2.Token, error) {
	var (
		tok    oauth2.Token
		expiry sql.NullTime
	)

	err := r.db.QueryRow(`
		SELECT access_token, refresh_token, token_type, expiry
		FROM youtube_connections
		WHERE id = 1
	`).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	if expiry.Valid {
		tok.Expiry = expiry.Time
	}
	return &tok, nil
}

// Save stores tok, keeping the existing refresh token when tok has none.
func (r *TokenRepository) Save(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: token has no access token", shared.ErrInvalidInput)
	}

	var expiry sql.NullTime
	if !tok.Expiry.IsZero() {
		expiry = sql.NullTime{Time: tok.Expiry.UTC(), Valid: true}
	}
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		INSERT INTO youtube_connections (id, access_token, refresh_token, token_type, expiry, connected_at, last_used_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN youtube_connections.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			last_used_at = excluded.last_used_at
	`, tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry, now, now)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// SetEmail records the Google account the token belongs to.
func (r *TokenRepository) SetEmail(email string) error {
	result, err := r.db.Exec("UPDATE youtube_connections SET google_email = ? WHERE id = 1", email)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}
	return affectedOne(result, shared.ErrNotAuthenticated)
}

// Status describes the stored connection.
func (r *TokenRepository) Status() (*Connection, error) {
	var (
		c       Connection
		refresh string
		expiry  sql.NullTime
	)

	err := r.db.QueryRow(`
		SELECT google_email, refresh_token, expiry, connected_at, last_used_at
		FROM youtube_connections
		WHERE id = 1
	`).Scan(&c.Email, &refresh, &expiry, &c.ConnectedAt, &c.LastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}

	c.HasRefresh = refresh != ""
	if expiry.Valid {
		c.Expiry = expiry.Time
	}
	return &c, nil
}

// Delete disconnects YouTube.
func (r *TokenRepository) Delete() error {
	if _, err := r.db.Exec("DELETE FROM youtube_connections"); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}
