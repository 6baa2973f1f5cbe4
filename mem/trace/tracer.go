package trace

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim"
	"github.com/sarchlab/cachesim/tracing"
)

// memoryTransactionEntry is a memory access in the database. Addresses are
// stored as hexadecimal text since SQLite integers are signed.
type memoryTransactionEntry struct {
	ID        string
	Location  string
	What      string
	PID       int
	Tag       int64
	Address   string
	StartTime float64
	EndTime   float64
}

// memoryStepEntry is a step that a memory access reached.
type memoryStepEntry struct {
	TaskID string
	Time   float64
	What   string
}

// A tracer is a hook that logs the memory accesses of a cache.
type tracer struct {
	timeTeller sim.TimeTeller
	logger     *zap.Logger
}

// NewTracer creates a tracer that writes every access to a logger at Info
// level.
func NewTracer(logger *zap.Logger, timeTeller sim.TimeTeller) tracing.Tracer {
	return &tracer{
		timeTeller: timeTeller,
		logger:     logger,
	}
}

// StartTask logs the start of a memory access.
func (t *tracer) StartTask(task tracing.Task) {
	req, ok := task.Detail.(cache.RequestInfo)
	if !ok {
		return
	}

	t.logger.Info("access start",
		zap.Float64("time", float64(t.timeTeller.CurrentTime())),
		zap.String("location", task.Location),
		zap.String("id", task.ID),
		zap.String("what", task.What),
		zap.Int("pid", req.PID),
		zap.String("addr", hexAddress(req.Address)),
	)
}

// StepTask logs a step of a memory access.
func (t *tracer) StepTask(task tracing.Task) {
	for _, step := range task.Steps {
		t.logger.Info("access step",
			zap.Float64("time", float64(t.timeTeller.CurrentTime())),
			zap.String("id", task.ID),
			zap.String("what", step.What),
		)
	}
}

// EndTask logs the end of a memory access.
func (t *tracer) EndTask(task tracing.Task) {
	t.logger.Info("access end",
		zap.Float64("time", float64(t.timeTeller.CurrentTime())),
		zap.String("id", task.ID),
	)
}

// A dbTracer is a hook that records the memory accesses of a cache in a
// database.
type dbTracer struct {
	timeTeller          sim.TimeTeller
	dataRecorder        datarecording.DataRecorder
	pendingTransactions map[string]*memoryTransactionEntry
}

// NewDBTracer creates a tracer that records memory accesses in the
// memory_transactions table and their steps in the memory_steps table.
func NewDBTracer(
	dataRecorder datarecording.DataRecorder,
	timeTeller sim.TimeTeller,
) tracing.Tracer {
	t := &dbTracer{
		timeTeller:          timeTeller,
		dataRecorder:        dataRecorder,
		pendingTransactions: make(map[string]*memoryTransactionEntry),
	}

	t.dataRecorder.CreateTable("memory_transactions", memoryTransactionEntry{})
	t.dataRecorder.CreateTable("memory_steps", memoryStepEntry{})

	return t
}

// StartTask marks the start of a memory access.
func (t *dbTracer) StartTask(task tracing.Task) {
	req, ok := task.Detail.(cache.RequestInfo)
	if !ok {
		return
	}

	t.pendingTransactions[task.ID] = &memoryTransactionEntry{
		ID:        task.ID,
		Location:  task.Location,
		What:      task.What,
		PID:       req.PID,
		Tag:       req.Tag,
		Address:   hexAddress(req.Address),
		StartTime: float64(t.timeTeller.CurrentTime()),
	}
}

// StepTask records the steps of a memory access.
func (t *dbTracer) StepTask(task tracing.Task) {
	if _, ok := t.pendingTransactions[task.ID]; !ok {
		return
	}

	now := float64(t.timeTeller.CurrentTime())

	for _, step := range task.Steps {
		t.dataRecorder.InsertData("memory_steps", memoryStepEntry{
			TaskID: task.ID,
			Time:   now,
			What:   step.What,
		})
	}
}

// EndTask records a completed memory access.
func (t *dbTracer) EndTask(task tracing.Task) {
	entry, exists := t.pendingTransactions[task.ID]
	if !exists {
		return
	}

	entry.EndTime = float64(t.timeTeller.CurrentTime())
	t.dataRecorder.InsertData("memory_transactions", *entry)

	delete(t.pendingTransactions, task.ID)
}

func hexAddress(addr uint64) string {
	return fmt.Sprintf("0x%x", addr)
}
