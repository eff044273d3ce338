// Package tasks runs the roll pipeline with real-time progress reporting.
//
// # Core Operations
//
//  1. [RollEngine.Roll] : library → seeds → recommendations → preview
//     - Samples seeds with package dice (random or deep cuts)
//     - Asks a [services.RecommendationService] for related tracks
//     - Deduplicates by video id, keeping first occurrences, and truncates to the requested size
//     - Discards results from rolls superseded by a newer one (generation token)
//
//  2. [Assembler.Assemble] : preview → playlist → history
//     - Creates the playlist through a [services.PlaylistService]
//     - Appends a [models.RollRecord] to history in the background
//
//  3. [Reconciler.Reconcile] : history → existence checks
//     - Checks saved playlists in batches of [services.MaxExistenceBatch] with a rate-limited worker pool
//     - Flags (or prunes) records whose playlist was deleted
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
