package tracing

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/sim"
)

type manualClock struct {
	now sim.VTimeInSec
}

func (c *manualClock) CurrentTime() sim.VTimeInSec {
	return c.now
}

var _ = Describe("DBTraceReader", func() {
	var (
		path   string
		reader *DBTraceReader
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "trace")
		clock := &manualClock{}
		recorder := datarecording.New(path)
		tracer := NewDBTracer(clock, recorder)

		l1 := tracedDomain{HookableBase: sim.NewHookableBase()}
		CollectTrace(l1, tracer)

		StartTask("a", "", l1, "req_in", "load", nil)
		clock.now = 1
		StartTask("b", "", l1, "req_in", "store", nil)
		AddTaskStep("a", l1, "miss")
		clock.now = 2
		AddTaskStep("a", l1, "data_received")
		EndTask("a", l1)
		StartTask("c", "b", l1, "sub", "fill", nil)
		clock.now = 5
		EndTask("c", l1)
		EndTask("b", l1)

		tracer.Terminate()
		Expect(recorder.Close()).To(Succeed())

		var err error
		reader, err = NewDBTraceReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(reader.Close()).To(Succeed())
	})

	It("should list components", func() {
		components, err := reader.ListComponents()

		Expect(err).NotTo(HaveOccurred())
		Expect(components).To(Equal([]string{"Domain"}))
	})

	It("should list all tasks by start time", func() {
		tasks, err := reader.ListTasks(TaskQuery{})

		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(3))
		Expect(tasks[0].ID).To(Equal("a"))
		Expect(tasks[0].StartTime).To(Equal(sim.VTimeInSec(0)))
		Expect(tasks[0].EndTime).To(Equal(sim.VTimeInSec(2)))
		Expect(tasks[0].Steps).To(BeEmpty())
	})

	It("should filter tasks", func() {
		tasks, err := reader.ListTasks(TaskQuery{Kind: "req_in", What: "store"})
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].ID).To(Equal("b"))

		tasks, err = reader.ListTasks(TaskQuery{ParentID: "b"})
		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].ID).To(Equal("c"))
	})

	It("should select tasks overlapping a time range", func() {
		tasks, err := reader.ListTasks(TaskQuery{
			EnableTimeRange: true,
			StartTime:       3,
			EndTime:         4,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(2))
		Expect(tasks[0].ID).To(Equal("b"))
		Expect(tasks[1].ID).To(Equal("c"))
	})

	It("should load steps", func() {
		tasks, err := reader.ListTasks(TaskQuery{ID: "a", EnableSteps: true})

		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].Steps).To(Equal([]TaskStep{
			{Time: 1, What: "miss"},
			{Time: 2, What: "data_received"},
		}))
	})

	It("should not accept quoted values as SQL", func() {
		tasks, err := reader.ListTasks(TaskQuery{ID: "a' OR '1'='1"})

		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(BeEmpty())
	})
})

var _ = Describe("NewDBTraceReader", func() {
	It("should fail on a missing file", func() {
		_, err := NewDBTraceReader(
			filepath.Join(GinkgoT().TempDir(), "missing.sqlite3"))

		Expect(err).To(HaveOccurred())
	})
})
