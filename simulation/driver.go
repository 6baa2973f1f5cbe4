package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/sim"
)

// ErrStalled is returned when requests remain outstanding but none has
// completed for too many cycles.
var ErrStalled = errors.New("simulation stalled")

// Cache is what the driver needs from a cache.
type Cache interface {
	sim.Named
	sim.Ticker
	Issue(op cache.Op, pid int, tag int64, callback cache.Callback)
	NumOutstanding() int
	CurrentCycle() uint64
	Finish(w io.Writer) error
	Destroy() error
}

// A Result summarizes a run.
type Result struct {
	Cycles    uint64
	Issued    uint64
	Completed uint64
}

type processor struct {
	ops  []cache.Op
	next int
	busy bool
}

// A Driver replays per-processor operation streams on a cache. Every
// processor has at most one request outstanding. The correlation tag of a
// request is the index of the operation in its stream.
type Driver struct {
	cache         Cache
	processors    []*processor
	maxIdleCycles uint64
	logger        *zap.Logger
	finishWriter  io.Writer

	lock     sync.Locker
	progress *monitoring.ProgressBar
	monitor  *monitoring.Monitor

	issued     uint64
	completed  uint64
	idleCycles uint64
	ran        bool
}

// DriverBuilder builds drivers.
type DriverBuilder struct {
	maxIdleCycles uint64
	logger        *zap.Logger
	finishWriter  io.Writer
	simulation    *Simulation
}

// MakeDriverBuilder creates a builder that gives up after 100000 cycles
// without progress.
func MakeDriverBuilder() DriverBuilder {
	return DriverBuilder{
		maxIdleCycles: 100000,
	}
}

// WithMaxIdleCycles sets how many cycles may pass without a completion
// while requests are outstanding. 0 disables the check.
func (b DriverBuilder) WithMaxIdleCycles(n uint64) DriverBuilder {
	b.maxIdleCycles = n
	return b
}

// WithLogger sets the logger.
func (b DriverBuilder) WithLogger(logger *zap.Logger) DriverBuilder {
	b.logger = logger
	return b
}

// WithFinishWriter sets where the cache writes when the run finishes.
func (b DriverBuilder) WithFinishWriter(w io.Writer) DriverBuilder {
	b.finishWriter = w
	return b
}

// WithSimulation registers the driven cache with a simulation, so that it
// is recorded and monitored.
func (b DriverBuilder) WithSimulation(s *Simulation) DriverBuilder {
	b.simulation = s
	return b
}

// Build creates a driver that replays the streams on the cache.
func (b DriverBuilder) Build(c Cache, streams [][]cache.Op) *Driver {
	d := &Driver{
		cache:         c,
		maxIdleCycles: b.maxIdleCycles,
		logger:        b.logger,
		finishWriter:  b.finishWriter,
		lock:          noLock{},
	}

	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	if d.finishWriter == nil {
		d.finishWriter = io.Discard
	}

	total := uint64(0)
	for _, ops := range streams {
		d.processors = append(d.processors, &processor{ops: ops})
		total += uint64(len(ops))
	}

	if b.simulation != nil {
		b.simulation.RegisterComponent(c)

		if m := b.simulation.GetMonitor(); m != nil {
			d.monitor = m
			d.lock = m.SimulationLock()
			d.progress = m.CreateProgressBar(c.Name(), total)
		}
	}

	return d
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// Run replays the streams until every operation completes, the context is
// canceled or the cache stalls. The cache is finished and destroyed before
// Run returns. A driver can only run once.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	if d.ran {
		panic("driver can only run once")
	}

	d.ran = true

	d.logger.Info("run started",
		zap.String("cache", d.cache.Name()),
		zap.Int("processors", len(d.processors)),
	)

	err := d.loop(ctx)

	result := Result{
		Cycles:    d.cache.CurrentCycle(),
		Issued:    d.issued,
		Completed: d.completed,
	}

	err = errors.Join(err, d.shutdown())

	d.logger.Info("run finished",
		zap.String("cache", d.cache.Name()),
		zap.Uint64("cycles", result.Cycles),
		zap.Uint64("completed", result.Completed),
		zap.Error(err),
	)

	return result, err
}

func (d *Driver) loop(ctx context.Context) error {
	for !d.done() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled at cycle %d: %w",
				d.cache.CurrentCycle(), err)
		}

		completedBefore := d.completed

		d.lock.Lock()
		d.issueIdleProcessors()
		d.cache.Tick()
		d.lock.Unlock()

		if err := d.checkStall(completedBefore); err != nil {
			return err
		}
	}

	return nil
}

func (d *Driver) done() bool {
	for _, p := range d.processors {
		if p.busy || p.next < len(p.ops) {
			return false
		}
	}

	return d.cache.NumOutstanding() == 0
}

func (d *Driver) issueIdleProcessors() {
	for pid, p := range d.processors {
		if p.busy || p.next >= len(p.ops) {
			continue
		}

		op := p.ops[p.next]
		tag := int64(p.next)
		p.next++
		p.busy = true
		d.issued++

		if d.progress != nil {
			d.progress.IncrementInProgress(1)
		}

		d.cache.Issue(op, pid, tag, d.complete)
	}
}

func (d *Driver) complete(pid int, tag int64) {
	if pid < 0 || pid >= len(d.processors) {
		panic(fmt.Sprintf("completion for unknown processor %d", pid))
	}

	p := d.processors[pid]
	if !p.busy || tag != int64(p.next-1) {
		panic(fmt.Sprintf(
			"unexpected completion of op %d on processor %d", tag, pid))
	}

	p.busy = false
	d.completed++

	if d.progress != nil {
		d.progress.MoveInProgressToFinished(1)
	}
}

func (d *Driver) checkStall(completedBefore uint64) error {
	if d.completed != completedBefore || d.cache.NumOutstanding() == 0 {
		d.idleCycles = 0
		return nil
	}

	d.idleCycles++

	if d.maxIdleCycles == 0 || d.idleCycles < d.maxIdleCycles {
		return nil
	}

	d.logger.Error("simulation stalled",
		zap.String("cache", d.cache.Name()),
		zap.Uint64("cycle", d.cache.CurrentCycle()),
		zap.Uint64("idle_cycles", d.idleCycles),
		zap.Int("outstanding", d.cache.NumOutstanding()),
	)

	return fmt.Errorf("%w: %d requests outstanding, none completed in %d cycles",
		ErrStalled, d.cache.NumOutstanding(), d.idleCycles)
}

func (d *Driver) shutdown() error {
	if d.progress != nil {
		d.monitor.CompleteProgressBar(d.progress)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	return errors.Join(
		d.cache.Finish(d.finishWriter),
		d.cache.Destroy(),
	)
}
