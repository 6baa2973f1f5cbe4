package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func recencyCounters(set *Set) []int {
	counters := make([]int, len(set.Blocks))
	for i, b := range set.Blocks {
		counters[i] = b.RecencyCounter
	}

	return counters
}

func rrpvs(set *Set) []int {
	values := make([]int, len(set.Blocks))
	for i, b := range set.Blocks {
		values[i] = b.RRPV
	}

	return values
}

// access mimics how the cache uses a victim finder on one access.
func access(tags TagArray, vf VictimFinder, setID int, tag uint64) (way int, hit bool) {
	set := tags.GetSet(setID)

	way, hit = tags.Lookup(setID, tag)
	if hit {
		vf.Visit(set, way, true)
		return way, true
	}

	way = vf.FindVictim(set)
	tags.Install(setID, way, tag)
	vf.Visit(set, way, false)

	return way, false
}

var _ = Describe("LRUVictimFinder", func() {
	var (
		tags TagArray
		vf   *LRUVictimFinder
		set  *Set
	)

	BeforeEach(func() {
		tags = NewTagArray(1, 4, 16)
		vf = NewLRUVictimFinder()
		set = tags.GetSet(0)
	})

	It("should pick the first invalid block", func() {
		set.Blocks[0].IsValid = true
		set.Blocks[1].IsValid = true

		Expect(vf.FindVictim(set)).To(Equal(2))
	})

	It("should pick the block with the greatest counter", func() {
		for i := range set.Blocks {
			set.Blocks[i].IsValid = true
		}
		set.Blocks[0].RecencyCounter = 1
		set.Blocks[1].RecencyCounter = 3
		set.Blocks[2].RecencyCounter = 0
		set.Blocks[3].RecencyCounter = 2

		Expect(vf.FindVictim(set)).To(Equal(1))
	})

	It("should break ties with the lowest way", func() {
		for i := range set.Blocks {
			set.Blocks[i].IsValid = true
			set.Blocks[i].RecencyCounter = 2
		}
		set.Blocks[0].RecencyCounter = 1

		Expect(vf.FindVictim(set)).To(Equal(1))
	})

	It("should age more recent blocks on visit", func() {
		for i := range set.Blocks {
			set.Blocks[i].IsValid = true
		}
		set.Blocks[0].RecencyCounter = 0
		set.Blocks[1].RecencyCounter = 1
		set.Blocks[2].RecencyCounter = 2
		set.Blocks[3].RecencyCounter = 3

		vf.Visit(set, 2, true)

		Expect(recencyCounters(set)).To(Equal([]int{1, 2, 0, 3}))
	})

	It("should not age invalid blocks", func() {
		set.Blocks[0].IsValid = true
		set.Blocks[0].RecencyCounter = 0
		set.Blocks[1].IsValid = false
		set.Blocks[1].RecencyCounter = 0
		set.Blocks[2].IsValid = true
		set.Blocks[2].RecencyCounter = 1

		vf.Visit(set, 2, true)

		Expect(recencyCounters(set)).To(Equal([]int{1, 0, 0, 3}))
	})

	It("should never hold more valid blocks than ways", func() {
		for tag := uint64(0); tag < 20; tag++ {
			_, hit := access(tags, vf, 0, tag)
			Expect(hit).To(BeFalse())
			Expect(set.NumValid()).To(BeNumerically("<=", 4))
		}

		Expect(set.NumValid()).To(Equal(4))
	})

	It("should order blocks by recency while filling", func() {
		for tag := uint64(0); tag < 4; tag++ {
			access(tags, vf, 0, tag)
		}

		Expect(recencyCounters(set)).To(Equal([]int{3, 2, 1, 0}))
	})

	It("should evict the least recently used block of a full set", func() {
		for tag := uint64(0); tag < 8; tag++ {
			access(tags, vf, 0, tag)
		}

		wayOf := func(tag uint64) int {
			way, ok := tags.Lookup(0, tag)
			Expect(ok).To(BeTrue())
			return way
		}

		access(tags, vf, 0, 5)
		victimWay := wayOf(4)

		way, hit := access(tags, vf, 0, 100)

		Expect(hit).To(BeFalse())
		Expect(way).To(Equal(victimWay))
		_, ok := tags.Lookup(0, 4)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("RRIPVictimFinder", func() {
	var (
		tags TagArray
		vf   *RRIPVictimFinder
		set  *Set
	)

	BeforeEach(func() {
		tags = NewTagArray(1, 4, 16)
		vf = NewRRIPVictimFinder(2)
		set = tags.GetSet(0)
	})

	It("should reject zero-width counters", func() {
		Expect(func() { NewRRIPVictimFinder(0) }).To(Panic())
	})

	It("should know the saturation and insertion values", func() {
		Expect(vf.MaxRRPV()).To(Equal(3))
		Expect(vf.InsertRRPV()).To(Equal(1))
		Expect(NewRRIPVictimFinder(1).InsertRRPV()).To(Equal(0))
	})

	It("should fill invalid blocks first", func() {
		set.Blocks[0].IsValid = true
		set.Blocks[0].RRPV = 0

		Expect(vf.FindVictim(set)).To(Equal(1))
		Expect(set.Blocks[0].RRPV).To(Equal(0))
	})

	It("should pick the first saturated block", func() {
		for i := range set.Blocks {
			set.Blocks[i].IsValid = true
		}
		set.Blocks[0].RRPV = 1
		set.Blocks[1].RRPV = 3
		set.Blocks[2].RRPV = 3

		Expect(vf.FindVictim(set)).To(Equal(1))
		Expect(rrpvs(set)).To(Equal([]int{1, 3, 3, 0}))
	})

	It("should age until a block saturates", func() {
		for i := range set.Blocks {
			set.Blocks[i].IsValid = true
		}
		set.Blocks[0].RRPV = 0
		set.Blocks[1].RRPV = 1
		set.Blocks[2].RRPV = 0
		set.Blocks[3].RRPV = 1

		Expect(vf.FindVictim(set)).To(Equal(1))
		Expect(rrpvs(set)).To(Equal([]int{2, 3, 2, 3}))
	})

	It("should reset the RRPV on hit", func() {
		set.Blocks[2].IsValid = true
		set.Blocks[2].RRPV = 3

		vf.Visit(set, 2, true)

		Expect(set.Blocks[2].RRPV).To(Equal(0))
	})

	It("should insert at the insertion value and age others on fill", func() {
		for i := range set.Blocks {
			set.Blocks[i].IsValid = true
		}
		set.Blocks[0].RRPV = 3
		set.Blocks[1].RRPV = 0
		set.Blocks[2].RRPV = 2
		set.Blocks[3].RRPV = 3

		vf.Visit(set, 0, false)

		Expect(rrpvs(set)).To(Equal([]int{1, 1, 3, 3}))
	})

	It("should keep every RRPV in range", func() {
		for i := 0; i < 200; i++ {
			access(tags, vf, 0, uint64(i*7%11))

			for _, b := range set.Blocks {
				Expect(b.RRPV).To(BeNumerically(">=", 0))
				Expect(b.RRPV).To(BeNumerically("<=", vf.MaxRRPV()))
			}
		}
	})

	It("should raise other blocks to saturation before evicting a fresh block", func() {
		tags = NewTagArray(1, 2, 16)
		set = tags.GetSet(0)

		access(tags, vf, 0, 1)
		freshWay, _ := access(tags, vf, 0, 2)
		Expect(set.Blocks[freshWay].RRPV).To(Equal(1))

		way, hit := access(tags, vf, 0, 3)

		Expect(hit).To(BeFalse())
		Expect(way).NotTo(Equal(freshWay))
		Expect(set.Blocks[freshWay].RRPV).To(Equal(3))
		Expect(set.Blocks[way].RRPV).To(Equal(1))

		way, _ = access(tags, vf, 0, 4)
		Expect(way).To(Equal(freshWay))
	})
})
