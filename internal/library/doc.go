// Package library turns raw music-library exports into normalized track lists and filters them before sampling.
//
// # CSV Parsing
//
// [ParseCSV] accepts exports from streaming services, spreadsheets, and DJ software. Column headers are matched
// case-insensitively against known aliases:
//   - artist: artist, artist_name, performer
//   - title: title, track, song, name, track_name
//   - genre (optional): genre, style
//
// Some DJ software wraps each row in one outer pair of quotes with inner quotes doubled. Those rows are unwrapped
// before field splitting. Malformed rows are skipped; parsing only fails when the file as a whole is unusable:
//   - [shared.ErrEmptyInput] : fewer than two non-blank lines
//   - [shared.ErrMissingColumns] : no artist or title column (see [MissingColumnsError])
//   - [shared.ErrNoValidRows] : no row produced a track
//
// Accepted rows are deduplicated by case-insensitive (artist, title), keeping the first occurrence.
//
// # Genre Filtering
//
// [FilterByGenres] is the pipeline stage that runs before seed sampling, and [Genres] lists the genres
// available for selection.
package library
