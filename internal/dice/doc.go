// Package dice picks the seed tracks for a roll.
//
// [SeedCount] scales the requested playlist size to a number of seeds (one and a half seeds per ten tracks,
// rounded up). Two strategies choose which tracks become seeds:
//   - random: a uniform sample of the pool
//   - deep: a uniform sample of songs by niche artists, those with at most [NicheThreshold] songs in the pool,
//     falling back to random over the whole pool when there are too few niche songs
//
// Samplers never modify their input. Genre filtering happens before sampling (see package library).
package dice
