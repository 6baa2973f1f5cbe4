// Package tagging keeps the metadata of a set-associative cache and decides
// which block to replace.
package tagging

import (
	"fmt"
	"math/bits"
)

// TagArray holds the per-block metadata of a set-associative cache.
type TagArray interface {
	NumSets() int
	NumWays() int
	BlockSize() int
	TotalSize() uint64

	// AlignAddress discards the block offset bits of an address.
	AlignAddress(addr uint64) uint64

	// DecomposeAddress maps an address to the set it lives in and the tag
	// that identifies it within the set.
	DecomposeAddress(addr uint64) (setID int, tag uint64)

	// ComposeAddress rebuilds the block-aligned address of a set and tag.
	ComposeAddress(setID int, tag uint64) uint64

	GetSet(setID int) *Set
	Lookup(setID int, tag uint64) (wayID int, found bool)
	Install(setID, wayID int, tag uint64)
	Reset()
}

// NewTagArray creates a tag array. Both numSets and blockSize must be powers
// of two and numWays must be positive.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
) TagArray {
	mustBePowerOfTwo("number of sets", numSets)
	mustBePowerOfTwo("block size", blockSize)

	if numWays <= 0 {
		panic(fmt.Sprintf("number of ways must be positive, got %d", numWays))
	}

	t := &tagArrayImpl{
		NumSetsValue:   numSets,
		NumWaysValue:   numWays,
		BlockSizeValue: blockSize,
		Sets:           []Set{},
		log2BlockSize:  bits.TrailingZeros64(uint64(blockSize)),
		log2NumSets:    bits.TrailingZeros64(uint64(numSets)),
	}

	t.Reset()

	return t
}

func mustBePowerOfTwo(what string, n int) {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("%s must be a power of two, got %d", what, n))
	}
}

// A Block of a cache is the information that is associated with a cache line
type Block struct {
	SetID int
	WayID int
	Tag   uint64

	IsValid bool

	// IsDirty is never set. Write-back is not modeled.
	IsDirty bool

	// An invalid block ranks as the least recently used one, so that filling
	// it ages every valid block of the set.
	RecencyCounter int
	RRPV           int

	// Data only reserves the capacity of the line. Its content is never read.
	Data []byte
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks []Block
}

// NumValid returns the number of valid blocks in the set.
func (s *Set) NumValid() int {
	n := 0

	for i := range s.Blocks {
		if s.Blocks[i].IsValid {
			n++
		}
	}

	return n
}

type tagArrayImpl struct {
	NumSetsValue   int
	NumWaysValue   int
	BlockSizeValue int
	Sets           []Set

	log2BlockSize int
	log2NumSets   int
}

func (t *tagArrayImpl) NumSets() int {
	return t.NumSetsValue
}

func (t *tagArrayImpl) NumWays() int {
	return t.NumWaysValue
}

func (t *tagArrayImpl) BlockSize() int {
	return t.BlockSizeValue
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *tagArrayImpl) TotalSize() uint64 {
	return uint64(t.NumSetsValue) * uint64(t.NumWaysValue) *
		uint64(t.BlockSizeValue)
}

func (t *tagArrayImpl) AlignAddress(addr uint64) uint64 {
	return addr &^ (uint64(t.BlockSizeValue) - 1)
}

func (t *tagArrayImpl) DecomposeAddress(addr uint64) (setID int, tag uint64) {
	blockNumber := t.AlignAddress(addr) >> t.log2BlockSize
	setID = int(blockNumber & (uint64(t.NumSetsValue) - 1))
	tag = blockNumber >> t.log2NumSets

	return setID, tag
}

func (t *tagArrayImpl) ComposeAddress(setID int, tag uint64) uint64 {
	blockNumber := tag<<t.log2NumSets | uint64(setID)
	return blockNumber << t.log2BlockSize
}

// GetSet returns the set with the given ID.
func (t *tagArrayImpl) GetSet(setID int) *Set {
	t.mustBeValidSet(setID)
	return &t.Sets[setID]
}

// Lookup scans the set for a valid block that holds the tag. Since a tag is
// never installed twice in a set, the first match is the only match.
func (t *tagArrayImpl) Lookup(setID int, tag uint64) (wayID int, found bool) {
	set := t.GetSet(setID)
	for i := range set.Blocks {
		block := &set.Blocks[i]
		if block.IsValid && block.Tag == tag {
			return i, true
		}
	}

	return 0, false
}

// Install marks the block valid and records the new tag. The data of the
// block is left untouched.
func (t *tagArrayImpl) Install(setID, wayID int, tag uint64) {
	set := t.GetSet(setID)
	if wayID < 0 || wayID >= len(set.Blocks) {
		panic(fmt.Sprintf("way %d out of range [0, %d)", wayID, len(set.Blocks)))
	}

	block := &set.Blocks[wayID]
	block.IsValid = true
	block.Tag = tag
}

// Reset will mark all the blocks in the directory invalid
func (t *tagArrayImpl) Reset() {
	t.Sets = make([]Set, t.NumSetsValue)
	for i := 0; i < t.NumSetsValue; i++ {
		t.Sets[i].Blocks = make([]Block, t.NumWaysValue)

		for j := 0; j < t.NumWaysValue; j++ {
			t.Sets[i].Blocks[j] = Block{
				SetID:          i,
				WayID:          j,
				RecencyCounter: t.NumWaysValue - 1,
				Data:           make([]byte, t.BlockSizeValue),
			}
		}
	}
}

func (t *tagArrayImpl) mustBeValidSet(setID int) {
	if setID < 0 || setID >= len(t.Sets) {
		panic(fmt.Sprintf("set %d out of range [0, %d)", setID, len(t.Sets)))
	}
}
