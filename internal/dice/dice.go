package dice

import (
	"math/rand/v2"
	"sync"

	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
)

// NicheThreshold is the most songs an artist may have in the pool to count as niche.
const NicheThreshold = 2

// SeedCount returns how many seeds to request for a playlist of desired tracks.
func SeedCount(desired int) int {
	if desired <= 0 {
		return 0
	}
	return (desired*15 + 99) / 100
}

// Sampler draws seeds from a track pool. It is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a sampler with a deterministic source, for reproducible rolls and tests.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

var defaultSampler = &Sampler{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}

// Default returns the process-wide sampler.
func Default() *Sampler {
	return defaultSampler
}

// RollRandom returns min(n, len(songs)) distinct songs chosen uniformly at random.
func (s *Sampler) RollRandom(songs []models.Track, n int) []models.Track {
	if n <= 0 || len(songs) == 0 {
		return []models.Track{}
	}
	n = min(n, len(songs))

	pool := make([]models.Track, len(songs))
	copy(pool, songs)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range n {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// RollDeep samples from songs by niche artists, falling back to [Sampler.RollRandom] over the full pool
// when fewer than n niche songs exist.
func (s *Sampler) RollDeep(songs []models.Track, n int) []models.Track {
	niche := NichePool(songs)
	if len(niche) < n {
		return s.RollRandom(songs, n)
	}
	return s.RollRandom(niche, n)
}

// RollSeeds picks [SeedCount](desired) seeds from songs using mode.
func (s *Sampler) RollSeeds(songs []models.Track, desired int, mode models.DiceMode) ([]models.Track, error) {
	count := SeedCount(desired)

	switch mode {
	case models.ModeRandom:
		return s.RollRandom(songs, count), nil
	case models.ModeDeep:
		return s.RollDeep(songs, count), nil
	default:
		return nil, shared.ErrInvalidMode
	}
}

// NichePool returns, in order, the songs whose artist appears at most [NicheThreshold] times in songs.
// Artists are compared case-insensitively.
func NichePool(songs []models.Track) []models.Track {
	counts := make(map[string]int)
	for _, t := range songs {
		counts[shared.NormalizeArtist(t.Artist)]++
	}

	niche := make([]models.Track, 0, len(songs))
	for _, t := range songs {
		if counts[shared.NormalizeArtist(t.Artist)] <= NicheThreshold {
			niche = append(niche, t)
		}
	}
	return niche
}

// RollRandom samples with the default sampler.
func RollRandom(songs []models.Track, n int) []models.Track {
	return defaultSampler.RollRandom(songs, n)
}

// RollDeep samples niche songs with the default sampler.
func RollDeep(songs []models.Track, n int) []models.Track {
	return defaultSampler.RollDeep(songs, n)
}

// RollSeeds picks seeds with the default sampler.
func RollSeeds(songs []models.Track, desired int, mode models.DiceMode) ([]models.Track, error) {
	return defaultSampler.RollSeeds(songs, desired, mode)
}
