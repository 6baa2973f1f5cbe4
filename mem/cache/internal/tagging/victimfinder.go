package tagging

import "fmt"

// A VictimFinder decides which block should be evicted and keeps the
// replacement metadata of a set up to date.
type VictimFinder interface {
	// FindVictim returns the way to fill on a miss. It may update the
	// replacement metadata while searching.
	FindVictim(set *Set) int

	// Visit updates the replacement metadata after the way is accessed.
	// hit is false when the way was just filled by a miss.
	Visit(set *Set, wayID int, hit bool)
}

// LRUVictimFinder evicts the least recently used block to evict
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the first invalid block if there is one. Otherwise, it
// returns the valid block with the greatest recency counter. On ties, the
// lowest way wins.
func (e *LRUVictimFinder) FindVictim(set *Set) int {
	maxCounter := -1
	victim := -1

	for i := range set.Blocks {
		block := &set.Blocks[i]
		if !block.IsValid {
			return i
		}

		if block.RecencyCounter > maxCounter {
			maxCounter = block.RecencyCounter
			victim = i
		}
	}

	return victim
}

// Visit ages every valid block that is more recent than the visited block
// and makes the visited block the most recent one. Hits and fills are
// treated the same way.
func (e *LRUVictimFinder) Visit(set *Set, wayID int, _ bool) {
	current := set.Blocks[wayID].RecencyCounter

	for i := range set.Blocks {
		block := &set.Blocks[i]
		if block.IsValid && block.RecencyCounter < current {
			block.RecencyCounter++
		}
	}

	set.Blocks[wayID].RecencyCounter = 0
}

// RRIPVictimFinder implements static re-reference interval prediction. Each
// block carries a re-reference prediction value (RRPV) in [0, 2^bits-1].
// Blocks with the saturated value are evicted first.
type RRIPVictimFinder struct {
	bits int
}

// NewRRIPVictimFinder creates a RRIP victim finder with RRPV counters of the
// given width. The width must be at least 1.
func NewRRIPVictimFinder(bits int) *RRIPVictimFinder {
	if bits < 1 {
		panic(fmt.Sprintf("RRIP requires at least 1 RRPV bit, got %d", bits))
	}

	return &RRIPVictimFinder{bits: bits}
}

// MaxRRPV returns the saturation value of the RRPV counters.
func (e *RRIPVictimFinder) MaxRRPV() int {
	return 1<<e.bits - 1
}

// InsertRRPV returns the RRPV a newly filled block starts with.
func (e *RRIPVictimFinder) InsertRRPV() int {
	return 1<<(e.bits-1) - 1
}

// FindVictim returns the first invalid block if there is one. Otherwise, it
// scans from the lowest way for a saturated block, aging all valid blocks
// by one between scans. Every aging pass raises the maximum RRPV of the set,
// so at most MaxRRPV passes are needed.
func (e *RRIPVictimFinder) FindVictim(set *Set) int {
	for i := range set.Blocks {
		if !set.Blocks[i].IsValid {
			return i
		}
	}

	maxRRPV := e.MaxRRPV()

	for pass := 0; pass <= maxRRPV; pass++ {
		for i := range set.Blocks {
			if set.Blocks[i].RRPV == maxRRPV {
				return i
			}
		}

		e.age(set, -1)
	}

	panic("RRIP aging did not saturate any block")
}

// Visit promotes a hit block to RRPV 0. A newly filled block starts at the
// insertion value while every other valid block is aged by one.
func (e *RRIPVictimFinder) Visit(set *Set, wayID int, hit bool) {
	if hit {
		set.Blocks[wayID].RRPV = 0
		return
	}

	set.Blocks[wayID].RRPV = e.InsertRRPV()
	e.age(set, wayID)
}

func (e *RRIPVictimFinder) age(set *Set, skipWay int) {
	maxRRPV := e.MaxRRPV()

	for i := range set.Blocks {
		block := &set.Blocks[i]
		if i == skipWay || !block.IsValid {
			continue
		}

		if block.RRPV < maxRRPV {
			block.RRPV++
		}
	}
}
