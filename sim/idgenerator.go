package sim

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs
type IDGenerator interface {
	// Generate an ID
	Generate() string
}

var (
	defaultIDGenerator     IDGenerator
	defaultIDGeneratorOnce sync.Once
)

// GetIDGenerator returns the process-wide generator. It generates
// sequential IDs so that runs are reproducible.
func GetIDGenerator() IDGenerator {
	defaultIDGeneratorOnce.Do(func() {
		defaultIDGenerator = NewSequentialIDGenerator()
	})

	return defaultIDGenerator
}

// NewSequentialIDGenerator returns a standalone generator that counts from 1.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewParallelIDGenerator returns a generator of globally unique IDs. The IDs
// are not deterministic.
func NewParallelIDGenerator() IDGenerator {
	return parallelIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.nextID, 1), 10)
}

type parallelIDGenerator struct{}

func (parallelIDGenerator) Generate() string {
	return xid.New().String()
}
