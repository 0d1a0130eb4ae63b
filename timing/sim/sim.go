// Package sim provides a deterministic simulated L1 data cache for testing
// the calibrator, the eviction-set engine, and the covert-channel protocol
// without hardware timing.
//
// One Cache models the physical L1 shared by every actor on a core. Each
// actor obtains its own Source view; the views share the cache's LRU state,
// so one actor's fills evict another actor's lines exactly as they would on
// the real set-associative hardware. Tag and replacement state are managed
// by Akita cache components.
package sim

import (
	"math/rand"
	"sync"
	"unsafe"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/l1chan/timing"
)

// Cache is a simulated set-associative L1 data cache with LRU replacement.
// It is safe for use by multiple goroutines, which stand in for the
// independent sender and receiver processes.
type Cache struct {
	mu        sync.Mutex
	directory *akitacache.DirectoryImpl
	blockSize uint64
	config    *timing.SimConfig
	rng       *rand.Rand
}

// NewCache creates a simulated cache with the given shape. A nil config
// uses the noiseless defaults.
func NewCache(numSets, associativity, blockSize int, config *timing.SimConfig) *Cache {
	if config == nil {
		config = timing.DefaultSimConfig()
	}

	return &Cache{
		directory: akitacache.NewDirectory(
			numSets,
			associativity,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
		blockSize: uint64(blockSize),
		config:    config,
		rng:       rand.New(rand.NewSource(config.Seed)),
	}
}

// Source returns a timing.Source view of the cache for one actor.
// Addresses are the actor's own virtual addresses; views share all cache
// state.
func (c *Cache) Source() timing.Source {
	return &Source{cache: c}
}

// Reset invalidates all simulated cache lines.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directory.Reset()
}

// access looks up addr, updating LRU state. On a miss the line is brought
// in, evicting the LRU victim of its set. Returns true on a hit.
func (c *Cache) access(addr uintptr) bool {
	blockAddr := (uint64(addr) / c.blockSize) * c.blockSize

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.directory.Visit(block)
		return true
	}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		// Cannot happen with a properly shaped directory.
		return false
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return false
}

// invalidate drops the line containing addr, if resident. This models a
// CLFLUSH issued by the owning actor: lines brought in through other
// addresses are unaffected.
func (c *Cache) invalidate(addr uintptr) {
	blockAddr := (uint64(addr) / c.blockSize) * c.blockSize

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// latency draws an access latency for a hit or a miss per the config.
func (c *Cache) latency(hit bool) uint64 {
	var mean uint64
	var sigma float64

	if hit {
		mean, sigma = c.config.HitLatency, c.config.HitNoiseSigma
	} else {
		mean, sigma = c.config.MissLatency, c.config.MissNoiseSigma
	}

	if sigma == 0 {
		return mean
	}

	sample := float64(mean) + c.rng.NormFloat64()*sigma
	if sample < 1 {
		sample = 1
	}
	return uint64(sample)
}

// Source is one actor's view of a shared simulated Cache. It implements
// timing.Source.
type Source struct {
	cache *Cache
}

// Touch brings the line containing ptr into the simulated cache.
func (s *Source) Touch(ptr unsafe.Pointer) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.access(uintptr(ptr))
}

// Flush evicts the line containing ptr from the simulated cache.
func (s *Source) Flush(ptr unsafe.Pointer) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.invalidate(uintptr(ptr))
}

// TimedRead accesses ptr and returns a latency drawn from the hit or miss
// distribution. Like a real timed read, a miss brings the line in.
func (s *Source) TimedRead(ptr unsafe.Pointer) uint64 {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	hit := s.cache.access(uintptr(ptr))
	return s.cache.latency(hit)
}
