// Package repositories implements SQLite persistence for the library, roll history, and YouTube connection.
//
// Key Implementations:
//   - [LibraryRepository] : the single active library, replaced atomically on every upload
//   - [RollRepository] : append-only roll history, listed newest first
//   - [TokenRepository] : the single-user YouTube OAuth token
//
// Sequence numbers provide stable, human-readable ordering (e.g., roll #42) independent of UUIDs and timestamps.
// Each number is taken from a single-row counter table inside the transaction that inserts the row.
package repositories
