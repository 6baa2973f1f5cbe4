package simulation

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cachesim/coherence"
	"github.com/sarchlab/cachesim/mem/cache"
)

type completion struct {
	pid int
	tag int64
}

func load(addr uint64) cache.Op {
	return cache.Op{Opcode: cache.OpLoad, Address: addr}
}

func store(addr uint64) cache.Op {
	return cache.Op{Opcode: cache.OpStore, Address: addr}
}

func buildCache(c cache.Coherence) *cache.Comp {
	comp, err := cache.MakeBuilder().
		WithCoherence(c).
		WithSetIndexBits(2).
		WithAssociativity(2).
		WithBlockSizeBits(4).
		Build("L1")
	Expect(err).NotTo(HaveOccurred())

	return comp
}

var _ = Describe("Driver", func() {
	It("should replay every stream on an ideal cache", func() {
		c := buildCache(coherence.NewIdeal())
		driver := MakeDriverBuilder().Build(c, [][]cache.Op{
			{load(0x00), store(0x10), load(0x20)},
			{load(0x40)},
		})

		result, err := driver.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Issued).To(Equal(uint64(4)))
		Expect(result.Completed).To(Equal(uint64(4)))
		Expect(result.Cycles).To(Equal(uint64(3)))
		Expect(c.Destroy()).To(MatchError(cache.ErrAlreadyDestroyed))
	})

	It("should wait for the directory", func() {
		dir, err := coherence.MakeDirectoryBuilder().WithLatency(3).Build("Dir")
		Expect(err).NotTo(HaveOccurred())

		c := buildCache(dir)
		driver := MakeDriverBuilder().Build(c, [][]cache.Op{
			{load(0x00), load(0x08)},
		})

		result, err := driver.Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Cycles).To(Equal(uint64(4)))
		Expect(dir.Stats().Misses).To(Equal(uint64(1)))
		Expect(dir.Stats().Granted).To(Equal(uint64(1)))
	})

	It("should finish right away without operations", func() {
		c := buildCache(coherence.NewIdeal())

		result, err := MakeDriverBuilder().
			Build(c, [][]cache.Op{nil, {}}).
			Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(Result{}))
	})

	It("should stop when canceled", func() {
		c := buildCache(coherence.NewIdeal())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := MakeDriverBuilder().
			Build(c, [][]cache.Op{{load(0)}}).
			Run(ctx)

		Expect(err).To(MatchError(context.Canceled))
		Expect(result.Issued).To(BeZero())
	})

	It("should refuse to run twice", func() {
		c := buildCache(coherence.NewIdeal())
		driver := MakeDriverBuilder().Build(c, nil)

		_, err := driver.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(func() { driver.Run(context.Background()) }).To(Panic())
	})

	Context("with a mock cache", func() {
		var (
			mockCtrl  *gomock.Controller
			mockCache *MockCache
			callbacks []cache.Callback
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mockCache = NewMockCache(mockCtrl)
			callbacks = nil

			mockCache.EXPECT().Name().Return("Mock").AnyTimes()
			mockCache.EXPECT().CurrentCycle().Return(uint64(7)).AnyTimes()
			mockCache.EXPECT().
				Issue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
				Do(func(_ cache.Op, _ int, _ int64, cb cache.Callback) {
					callbacks = append(callbacks, cb)
				}).
				AnyTimes()
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should report a stall", func() {
			mockCache.EXPECT().Tick().Return(false).Times(5)
			mockCache.EXPECT().NumOutstanding().Return(1).AnyTimes()
			mockCache.EXPECT().Finish(gomock.Any()).Return(nil)
			mockCache.EXPECT().Destroy().Return(nil)

			result, err := MakeDriverBuilder().
				WithMaxIdleCycles(5).
				Build(mockCache, [][]cache.Op{{load(0)}}).
				Run(context.Background())

			Expect(err).To(MatchError(ErrStalled))
			Expect(result.Issued).To(Equal(uint64(1)))
			Expect(result.Completed).To(BeZero())
		})

		It("should return shutdown errors", func() {
			destroyErr := errors.New("destroy failed")

			mockCache.EXPECT().Tick().DoAndReturn(func() bool {
				callbacks[0](0, 0)
				return true
			})
			mockCache.EXPECT().NumOutstanding().Return(0).AnyTimes()
			mockCache.EXPECT().Finish(gomock.Any()).Return(nil)
			mockCache.EXPECT().Destroy().Return(destroyErr)

			_, err := MakeDriverBuilder().
				Build(mockCache, [][]cache.Op{{load(0)}}).
				Run(context.Background())

			Expect(err).To(MatchError(destroyErr))
		})

		It("should panic on a completion with the wrong tag", func() {
			mockCache.EXPECT().Tick().DoAndReturn(func() bool {
				callbacks[0](0, 3)
				return true
			})
			mockCache.EXPECT().NumOutstanding().Return(1).AnyTimes()

			driver := MakeDriverBuilder().
				Build(mockCache, [][]cache.Op{{load(0)}})

			Expect(func() { driver.Run(context.Background()) }).To(Panic())
		})
	})
})

var _ = Describe("Simulation", func() {
	It("should record and monitor the driven cache", func() {
		simulation, err := MakeBuilder().
			WithRecording().
			WithOutputFileName(filepath.Join(GinkgoT().TempDir(), "run")).
			WithMonitoring().
			Build()
		Expect(err).NotTo(HaveOccurred())
		defer simulation.Terminate()

		Expect(simulation.MonitorURL()).To(HavePrefix("http://localhost:"))

		dir, err := coherence.MakeDirectoryBuilder().WithLatency(2).Build("Dir")
		Expect(err).NotTo(HaveOccurred())

		c := buildCache(dir)
		driver := MakeDriverBuilder().
			WithSimulation(simulation).
			Build(c, [][]cache.Op{{load(0x00), store(0x40)}})

		Expect(simulation.GetComponentByName("L1")).To(BeIdenticalTo(c))
		Expect(simulation.Components()).To(HaveLen(1))

		_, err = driver.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(simulation.CurrentTime()).To(BeNumerically(">", 0))
		Expect(simulation.GetVisTracer().NumInflightTasks()).To(BeZero())
	})

	It("should refuse to register a name twice", func() {
		simulation, err := MakeBuilder().Build()
		Expect(err).NotTo(HaveOccurred())

		c := buildCache(coherence.NewIdeal())
		simulation.RegisterComponent(c)

		Expect(func() { simulation.RegisterComponent(c) }).To(Panic())
		Expect(simulation.GetComponentByName("L2")).To(BeNil())
	})

	It("should reject options of disabled services", func() {
		_, err := MakeBuilder().WithMonitorPort(8080).Build()
		Expect(err).To(HaveOccurred())

		_, err = MakeBuilder().WithOutputFileName("x").Build()
		Expect(err).To(HaveOccurred())
	})
})
