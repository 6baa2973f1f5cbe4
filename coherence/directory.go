package coherence

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/mem/cache"
)

// ErrInvalidLatency is returned when a directory is built with a negative
// latency.
var ErrInvalidLatency = errors.New("directory latency must not be negative")

const noOwner = -1

type blockState struct {
	owner   int
	sharers map[int]bool
}

func (s *blockState) canRead(pid int) bool {
	return s.owner == pid || s.sharers[pid]
}

func (s *blockState) canWrite(pid int) bool {
	return s.owner == pid
}

type transaction struct {
	isLoad    bool
	addr      uint64
	pid       int
	remaining int
}

// DirectoryStats counts what a directory has done.
type DirectoryStats struct {
	Granted       uint64 `json:"granted"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	Downgrades    uint64 `json:"downgrades"`
}

// Directory tracks, for every block, which processors may read it and
// which processor may write it. A processor without the right permission
// waits a fixed number of cycles before the data arrives.
//
// A load by a processor that neither shares nor owns the block makes it a
// sharer and downgrades the owner, if any, to a sharer. A store by a
// processor that does not own the block makes it the only owner and
// invalidates every other copy.
type Directory struct {
	name    string
	latency int
	logger  *zap.Logger

	handler  cache.CompletionHandler
	blocks   map[uint64]*blockState
	inflight []*transaction
	cycle    uint64
	stats    DirectoryStats
}

// DirectoryBuilder builds directories.
type DirectoryBuilder struct {
	latency int
	logger  *zap.Logger
}

// MakeDirectoryBuilder returns a builder with a latency of 10 cycles.
func MakeDirectoryBuilder() DirectoryBuilder {
	return DirectoryBuilder{
		latency: 10,
	}
}

// WithLatency sets the number of cycles a miss takes.
func (b DirectoryBuilder) WithLatency(cycles int) DirectoryBuilder {
	b.latency = cycles
	return b
}

// WithLogger sets the logger.
func (b DirectoryBuilder) WithLogger(logger *zap.Logger) DirectoryBuilder {
	b.logger = logger
	return b
}

// Build creates a directory.
func (b DirectoryBuilder) Build(name string) (*Directory, error) {
	if b.latency < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLatency, b.latency)
	}

	d := &Directory{
		name:    name,
		latency: b.latency,
		logger:  b.logger,
		blocks:  make(map[uint64]*blockState),
	}

	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	return d, nil
}

// Name returns the name of the directory.
func (d *Directory) Name() string {
	return d.name
}

// RegisterCacheInterface registers the handler that receives the events.
func (d *Directory) RegisterCacheInterface(handler cache.CompletionHandler) {
	d.handler = handler
}

// PermReq grants the request if the processor already holds the block with
// enough permission. Otherwise the request is answered with
// EventDataReceived after the latency.
func (d *Directory) PermReq(
	isLoad bool,
	addr uint64,
	pid int,
) cache.Permission {
	state := d.block(addr)

	if (isLoad && state.canRead(pid)) || (!isLoad && state.canWrite(pid)) {
		d.stats.Granted++
		return cache.PermissionGranted
	}

	d.stats.Misses++
	d.inflight = append(d.inflight, &transaction{
		isLoad:    isLoad,
		addr:      addr,
		pid:       pid,
		remaining: d.latency,
	})

	d.logger.Debug("directory miss",
		zap.String("directory", d.name),
		zap.Bool("load", isLoad),
		zap.Uint64("addr", addr),
		zap.Int("pid", pid),
		zap.Int("latency", d.latency),
	)

	return cache.PermissionPending
}

// Tick counts down the in-flight transactions and completes those whose
// latency has elapsed, in the order they were requested.
func (d *Directory) Tick() bool {
	if len(d.inflight) == 0 {
		return false
	}

	d.cycle++

	remaining := d.inflight[:0]
	var done []*transaction

	for _, t := range d.inflight {
		t.remaining--
		if t.remaining <= 0 {
			done = append(done, t)
		} else {
			remaining = append(remaining, t)
		}
	}

	d.inflight = remaining

	for _, t := range done {
		d.complete(t)
	}

	return true
}

func (d *Directory) complete(t *transaction) {
	if d.handler == nil {
		panic(fmt.Sprintf("%s: no cache registered", d.name))
	}

	state := d.block(t.addr)

	if t.isLoad {
		d.grantRead(state, t)
	} else {
		d.grantWrite(state, t)
	}

	d.handler(cache.EventDataReceived, t.pid, t.addr)
}

func (d *Directory) grantRead(state *blockState, t *transaction) {
	if state.owner != noOwner && state.owner != t.pid {
		owner := state.owner
		state.owner = noOwner
		state.sharers[owner] = true

		d.stats.Downgrades++
		d.handler(cache.EventDowngrade, owner, t.addr)
	}

	state.sharers[t.pid] = true
}

func (d *Directory) grantWrite(state *blockState, t *transaction) {
	for _, pid := range d.holders(state) {
		if pid == t.pid {
			continue
		}

		d.stats.Invalidations++
		d.handler(cache.EventInvalidate, pid, t.addr)
	}

	state.owner = t.pid
	state.sharers = make(map[int]bool)
}

// holders returns the processors holding the block, in increasing order.
func (d *Directory) holders(state *blockState) []int {
	pids := make([]int, 0, len(state.sharers)+1)

	if state.owner != noOwner {
		pids = append(pids, state.owner)
	}

	for pid := range state.sharers {
		if pid != state.owner {
			pids = append(pids, pid)
		}
	}

	sort.Ints(pids)

	return pids
}

func (d *Directory) block(addr uint64) *blockState {
	state, ok := d.blocks[addr]
	if !ok {
		state = &blockState{
			owner:   noOwner,
			sharers: make(map[int]bool),
		}
		d.blocks[addr] = state
	}

	return state
}

// NumInflight returns the number of transactions waiting for their data.
func (d *Directory) NumInflight() int {
	return len(d.inflight)
}

// Stats returns the counters of the directory.
func (d *Directory) Stats() DirectoryStats {
	return d.stats
}

// Holders returns the processors that hold the block at the address.
func (d *Directory) Holders(addr uint64) []int {
	state, ok := d.blocks[addr]
	if !ok {
		return nil
	}

	return d.holders(state)
}

// Owner returns the processor that may write the block, or -1.
func (d *Directory) Owner(addr uint64) int {
	state, ok := d.blocks[addr]
	if !ok {
		return noOwner
	}

	return state.owner
}
