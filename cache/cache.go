// Package cache provides a set-associative LRU cache model using Akita cache
// components.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// MaxSetBits is the largest supported number of set-index bits.
const MaxSetBits = 30

// MaxLines is the largest supported number of lines (2^s * E). Every line is
// allocated when the cache is built, so larger caches are refused.
const MaxLines = 1 << 24

// ErrInvalidConfig is returned when a cache cannot be built from a Config.
var ErrInvalidConfig = errors.New("invalid cache config")

// Config holds cache geometry parameters.
type Config struct {
	// SetBits is s, the number of set-index bits. The cache has 2^s sets.
	SetBits int
	// Associativity is E, the number of lines per set.
	Associativity int
	// BlockBits is b, the number of block-offset bits. Blocks are 2^b bytes.
	BlockBits int
}

// Validate checks that the geometry describes a buildable cache.
func (c Config) Validate() error {
	if c.SetBits < 0 {
		return fmt.Errorf("%w: set bits must be >= 0, got %d",
			ErrInvalidConfig, c.SetBits)
	}
	if c.BlockBits < 0 {
		return fmt.Errorf("%w: block bits must be >= 0, got %d",
			ErrInvalidConfig, c.BlockBits)
	}
	if c.Associativity < 1 {
		return fmt.Errorf("%w: associativity must be >= 1, got %d",
			ErrInvalidConfig, c.Associativity)
	}
	if c.SetBits+c.BlockBits > 64 {
		return fmt.Errorf("%w: set bits + block bits must be <= 64, got %d",
			ErrInvalidConfig, c.SetBits+c.BlockBits)
	}
	if c.SetBits > MaxSetBits {
		return fmt.Errorf("%w: set bits must be <= %d, got %d",
			ErrInvalidConfig, MaxSetBits, c.SetBits)
	}
	if c.Associativity > MaxLines>>uint(c.SetBits) {
		return fmt.Errorf("%w: 2^%d sets of %d lines exceeds %d lines",
			ErrInvalidConfig, c.SetBits, c.Associativity, MaxLines)
	}
	return nil
}

// NumSets returns S = 2^s.
func (c Config) NumSets() int {
	return 1 << uint(c.SetBits)
}

// String renders the geometry in the csim flag notation.
func (c Config) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", c.SetBits, c.Associativity, c.BlockBits)
}

// Address is a decomposed memory address.
type Address struct {
	SetIndex uint64
	Tag      uint64
	Offset   uint64
}

// Outcome classifies a single cache access.
type Outcome int

// Possible access outcomes.
const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeMissEviction
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeMissEviction:
		return "miss eviction"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the block was already resident.
	Hit bool
	// Evicted is true if a valid line was replaced to make room.
	Evicted bool
	// SetIndex is the set the address maps to.
	SetIndex uint64
	// Tag is the tag of the accessed block.
	Tag uint64
	// EvictedTag is the tag of the replaced line (if Evicted is true).
	EvictedTag uint64
	// Way is the line within the set that now holds the block.
	Way int
}

// Outcome folds Hit and Evicted into a single Outcome.
func (r AccessResult) Outcome() Outcome {
	switch {
	case r.Hit:
		return OutcomeHit
	case r.Evicted:
		return OutcomeMissEviction
	default:
		return OutcomeMiss
	}
}

// Line is a snapshot of one cache line.
type Line struct {
	Way   int
	Valid bool
	Tag   uint64
}

// Cache is a set-associative cache with LRU replacement.
//
// The tag store is an Akita directory keyed by block number (addr >> b) with
// a directory block size of one, so the directory's set mapping is exactly
// the set index and its stored tag is the block number.
type Cache struct {
	config Config

	setMask   uint64
	blockMask uint64

	directory *akitacache.DirectoryImpl
}

// New creates a new cache with the given configuration. All lines start
// invalid.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Cache{
		config:    config,
		setMask:   mask(config.SetBits),
		blockMask: mask(config.BlockBits),
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			1,
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// NumSets returns the number of sets.
func (c *Cache) NumSets() int {
	return c.config.NumSets()
}

// BlockSize returns the block size in bytes. It saturates at the largest
// uint64 when b is 64.
func (c *Cache) BlockSize() uint64 {
	if c.config.BlockBits >= 64 {
		return c.blockMask
	}
	return c.blockMask + 1
}

// Decompose splits addr into set index, tag and block offset.
func (c *Cache) Decompose(addr uint64) Address {
	return Address{
		SetIndex: (addr >> uint(c.config.BlockBits)) & c.setMask,
		Tag:      addr >> uint(c.config.SetBits+c.config.BlockBits),
		Offset:   addr & c.blockMask,
	}
}

// blockNumber is the directory key for addr.
func (c *Cache) blockNumber(addr uint64) uint64 {
	return addr >> uint(c.config.BlockBits)
}

// Access touches the block that holds addr. On a miss the block is installed,
// replacing the first invalid line of the set or, if the set is full, its
// least recently used line. Either way the line becomes most recently used.
func (c *Cache) Access(addr uint64) AccessResult {
	decoded := c.Decompose(addr)
	key := c.blockNumber(addr)

	result := AccessResult{
		SetIndex: decoded.SetIndex,
		Tag:      decoded.Tag,
	}

	block := c.directory.Lookup(0, key)
	if block != nil {
		result.Hit = true
		result.Way = block.WayID
		c.directory.Visit(block)
		return result
	}

	victim := c.directory.FindVictim(key)
	if victim.IsValid {
		result.Evicted = true
		result.EvictedTag = victim.Tag >> uint(c.config.SetBits)
	}

	victim.Tag = key
	victim.IsValid = true
	c.directory.Visit(victim)

	result.Way = victim.WayID
	return result
}

// Resident reports whether the block holding addr is cached. It does not
// change the LRU order.
func (c *Cache) Resident(addr uint64) bool {
	return c.directory.Lookup(0, c.blockNumber(addr)) != nil
}

// Lines returns a snapshot of the lines of a set, in way order.
func (c *Cache) Lines(setIndex uint64) []Line {
	set := c.directory.GetSets()[setIndex]
	lines := make([]Line, 0, len(set.Blocks))
	for _, block := range set.Blocks {
		line := Line{Way: block.WayID, Valid: block.IsValid}
		if block.IsValid {
			line.Tag = block.Tag >> uint(c.config.SetBits)
		}
		lines = append(lines, line)
	}
	return lines
}

// Reset invalidates all cache lines and restores the initial LRU order.
func (c *Cache) Reset() {
	c.directory.Reset()
}

// mask returns a value with the lowest n bits set.
func mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}
