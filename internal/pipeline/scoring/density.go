package scoring

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// fingerprintPrefixLen groups near-duplicate fingerprints: the sha1 prefix is
// stable across minor summary variations of the same occurrence burst.
const fingerprintPrefixLen = 12

// DensityWindow tracks how many events shared a fingerprint prefix inside the
// configured window. The count feeds the noise sub-score.
type DensityWindow struct {
	mu     sync.Mutex
	counts *cache.Cache
}

// NewDensityWindow creates a density window with the given sliding duration.
func NewDensityWindow(window time.Duration) *DensityWindow {
	return &DensityWindow{
		counts: cache.New(window, 2*window),
	}
}

// Observe registers one event occurrence and returns the updated count for
// its fingerprint prefix.
func (w *DensityWindow) Observe(fingerprint string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := prefix(fingerprint)
	count := 1
	if existing, ok := w.counts.Get(key); ok {
		count = existing.(int) + 1
	}
	w.counts.SetDefault(key, count)
	return count
}

// Count returns the current count for the fingerprint's prefix without
// registering a new occurrence.
func (w *DensityWindow) Count(fingerprint string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.counts.Get(prefix(fingerprint)); ok {
		return existing.(int)
	}
	return 0
}

func prefix(fingerprint string) string {
	if len(fingerprint) <= fingerprintPrefixLen {
		return fingerprint
	}
	return fingerprint[:fingerprintPrefixLen]
}
