package cache

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim"
)

// ErrInvalidConfig is returned by Build when the cache cannot be configured.
var ErrInvalidConfig = errors.New("invalid cache configuration")

const (
	maxSetIndexBits  = 32
	maxBlockSizeBits = 32
	maxAddressBits   = 63
	maxRRPVBits      = 16
)

// Builder can build caches.
type Builder struct {
	freq        sim.Freq
	logger      *zap.Logger
	idGenerator sim.IDGenerator
	coherence   Coherence

	setIndexBits  int
	associativity int
	blockSizeBits int
	rrpvBits      int
	useRRIP       bool
}

// MakeBuilder creates a new builder. The sizing parameters have no default
// and must be set.
func MakeBuilder() Builder {
	return Builder{
		freq:          1 * sim.GHz,
		setIndexBits:  -1,
		blockSizeBits: -1,
	}
}

// WithFreq sets the frequency used to convert cycles to time.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLogger sets the logger of the cache.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithIDGenerator sets the generator of request IDs. By default, the
// process-wide generator is used.
func (b Builder) WithIDGenerator(g sim.IDGenerator) Builder {
	b.idGenerator = g
	return b
}

// WithCoherence sets the coherence protocol that grants access permissions.
func (b Builder) WithCoherence(coherence Coherence) Builder {
	b.coherence = coherence
	return b
}

// WithSetIndexBits sets the number of sets to 2^s.
func (b Builder) WithSetIndexBits(s int) Builder {
	b.setIndexBits = s
	return b
}

// WithAssociativity sets the number of blocks per set.
func (b Builder) WithAssociativity(e int) Builder {
	b.associativity = e
	return b
}

// WithBlockSizeBits sets the block size to 2^bits bytes.
func (b Builder) WithBlockSizeBits(bits int) Builder {
	b.blockSizeBits = bits
	return b
}

// WithRRPVBits selects the RRIP replacement policy with RRPV counters of the
// given width. Without this option, LRU is used.
func (b Builder) WithRRPVBits(r int) Builder {
	b.rrpvBits = r
	b.useRRIP = true

	return b
}

// Build builds a cache.
func (b Builder) Build(name string) (*Comp, error) {
	if err := b.validate(name); err != nil {
		return nil, err
	}

	c := &Comp{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		freq:         b.freq,
		logger:       b.logger,
		idGenerator:  b.idGenerator,
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if c.idGenerator == nil {
		c.idGenerator = sim.GetIDGenerator()
	}

	c.tags = tagging.NewTagArray(
		1<<b.setIndexBits,
		b.associativity,
		1<<b.blockSizeBits,
	)
	c.victimFinder = b.createVictimFinder()
	c.port = newCoherencePort(b.coherence, c.handleCoherenceEvent)

	c.logger.Debug("cache built",
		zap.String("name", name),
		zap.Int("sets", c.tags.NumSets()),
		zap.Int("ways", c.tags.NumWays()),
		zap.Int("block_size", c.tags.BlockSize()),
		zap.String("policy", b.policyName()),
	)

	return c, nil
}

func (b Builder) createVictimFinder() tagging.VictimFinder {
	if b.useRRIP {
		return tagging.NewRRIPVictimFinder(b.rrpvBits)
	}

	return tagging.NewLRUVictimFinder()
}

func (b Builder) policyName() string {
	if b.useRRIP {
		return fmt.Sprintf("rrip-%d", b.rrpvBits)
	}

	return "lru"
}

func (b Builder) validate(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: cache must have a name", ErrInvalidConfig)
	case b.setIndexBits < 0 || b.setIndexBits > maxSetIndexBits:
		return fmt.Errorf("%w: set index bits must be in [0, %d], got %d",
			ErrInvalidConfig, maxSetIndexBits, b.setIndexBits)
	case b.blockSizeBits < 0 || b.blockSizeBits > maxBlockSizeBits:
		return fmt.Errorf("%w: block size bits must be in [0, %d], got %d",
			ErrInvalidConfig, maxBlockSizeBits, b.blockSizeBits)
	case b.setIndexBits+b.blockSizeBits > maxAddressBits:
		return fmt.Errorf("%w: set index and block size use %d bits, max %d",
			ErrInvalidConfig, b.setIndexBits+b.blockSizeBits, maxAddressBits)
	case b.associativity < 1:
		return fmt.Errorf("%w: associativity must be positive, got %d",
			ErrInvalidConfig, b.associativity)
	case b.useRRIP && (b.rrpvBits < 1 || b.rrpvBits > maxRRPVBits):
		return fmt.Errorf("%w: RRPV bits must be in [1, %d], got %d",
			ErrInvalidConfig, maxRRPVBits, b.rrpvBits)
	case b.coherence == nil:
		return fmt.Errorf("%w: coherence protocol is required",
			ErrInvalidConfig)
	case b.freq <= 0:
		return fmt.Errorf("%w: frequency must be positive", ErrInvalidConfig)
	}

	return nil
}
