package tagging

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tags", func() {
	var (
		tags TagArray
	)

	BeforeEach(func() {
		tags = NewTagArray(1024, 4, 64)
	})

	It("should be able to get total size", func() {
		Expect(tags.TotalSize()).To(Equal(uint64(262144)))
	})

	It("should reserve data for every block", func() {
		set := tags.GetSet(3)

		Expect(set.Blocks).To(HaveLen(4))
		for i, b := range set.Blocks {
			Expect(b.SetID).To(Equal(3))
			Expect(b.WayID).To(Equal(i))
			Expect(b.IsValid).To(BeFalse())
			Expect(b.Data).To(HaveLen(64))
		}
	})

	It("should align addresses to the block", func() {
		Expect(tags.AlignAddress(0x1234)).To(Equal(uint64(0x1200)))
		Expect(tags.AlignAddress(0x1240)).To(Equal(uint64(0x1240)))
	})

	It("should decompose addresses", func() {
		setID, tag := tags.DecomposeAddress(0x12345)

		Expect(setID).To(Equal(int((0x12345 / 64) % 1024)))
		Expect(tag).To(Equal(uint64(0x12345 / (64 * 1024))))
	})

	It("should ignore the block offset when decomposing", func() {
		setA, tagA := tags.DecomposeAddress(0x10040)
		setB, tagB := tags.DecomposeAddress(0x1007f)

		Expect(setA).To(Equal(setB))
		Expect(tagA).To(Equal(tagB))
	})

	It("should round trip block-aligned addresses", func() {
		for _, addr := range []uint64{
			0, 64, 0x10040, 0xdeadbec0, 0xffffffffffffffc0,
		} {
			setID, tag := tags.DecomposeAddress(addr)
			Expect(tags.ComposeAddress(setID, tag)).To(Equal(addr))
		}
	})

	It("should lookup", func() {
		setID, tag := tags.DecomposeAddress(0x100)
		tags.Install(setID, 2, tag)

		wayID, ok := tags.Lookup(setID, tag)
		Expect(ok).To(BeTrue())
		Expect(wayID).To(Equal(2))
	})

	It("should miss when lookup cannot find block", func() {
		setID, tag := tags.DecomposeAddress(0x100)

		_, ok := tags.Lookup(setID, tag)
		Expect(ok).To(BeFalse())
	})

	It("should miss if block is invalid", func() {
		setID, tag := tags.DecomposeAddress(0x100)
		set := tags.GetSet(setID)
		set.Blocks[0].Tag = tag

		_, ok := tags.Lookup(setID, tag)
		Expect(ok).To(BeFalse())
	})

	It("should overwrite the tag on install without touching the data", func() {
		set := tags.GetSet(5)
		set.Blocks[1].Data[0] = 0xaa

		tags.Install(5, 1, 7)
		tags.Install(5, 1, 9)

		Expect(set.Blocks[1].IsValid).To(BeTrue())
		Expect(set.Blocks[1].Tag).To(Equal(uint64(9)))
		Expect(set.Blocks[1].Data[0]).To(Equal(byte(0xaa)))
		Expect(set.NumValid()).To(Equal(1))
	})

	It("should invalidate all blocks on reset", func() {
		tags.Install(5, 1, 7)

		tags.Reset()

		Expect(tags.GetSet(5).NumValid()).To(Equal(0))
	})

	It("should panic on out-of-range sets", func() {
		Expect(func() { tags.GetSet(1024) }).To(Panic())
		Expect(func() { tags.Install(0, 4, 1) }).To(Panic())
	})

	It("should reject sizes that are not powers of two", func() {
		Expect(func() { NewTagArray(3, 4, 64) }).To(Panic())
		Expect(func() { NewTagArray(4, 4, 48) }).To(Panic())
		Expect(func() { NewTagArray(4, 0, 64) }).To(Panic())
	})
})
