// Package models defines the domain entities shared by the roll pipeline, persistence, and presentation layers.
//
// The package contains two categories of types:
//
// 1. Library and roll values passed through the pipeline
//   - [Track] : Song from the uploaded library export (artist, title, optional genre)
//   - [Library] : The single active library with derived counts
//   - [Seed] : Artist/title pair submitted to the recommendation service
//   - [RecommendedTrack] : Candidate returned by the recommendation service
//   - [RollResult] : Deduplicated, truncated preview with roll statistics
//
// 2. Persistent entities
//   - [RollRecord] : Immutable snapshot of a committed roll
//   - [Library] : Stored as a header row plus ordered songs
//
// Track identity is the case-insensitive (artist, title) pair returned by [Track.Key].
package models
