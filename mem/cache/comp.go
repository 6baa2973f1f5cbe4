// Package cache models a set-associative cache whose accesses complete only
// after a coherence protocol grants permission.
package cache

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/mem/cache/internal/tagging"
	"github.com/sarchlab/cachesim/sim"
)

// ErrAlreadyDestroyed is returned when a cache is destroyed twice.
var ErrAlreadyDestroyed = errors.New("cache already destroyed")

// A Comp implements a cache.
//
// Requests are issued with Issue and complete on a later Tick. A request
// whose permission is granted right away is ready; otherwise it is pending
// until the coherence protocol reports EventDataReceived for the same
// processor and address. Every Tick first ticks the coherence protocol and
// then delivers all ready requests, the most recently queued first.
type Comp struct {
	*sim.HookableBase

	name        string
	freq        sim.Freq
	logger      *zap.Logger
	idGenerator sim.IDGenerator

	tags         tagging.TagArray
	victimFinder tagging.VictimFinder
	port         *coherencePort

	pending requestQueue
	ready   requestQueue

	cycle     uint64
	destroyed bool
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// CurrentCycle returns the number of ticks so far.
func (c *Comp) CurrentCycle() uint64 {
	return c.cycle
}

// CurrentTime returns the time of the current cycle.
func (c *Comp) CurrentTime() sim.VTimeInSec {
	return c.freq.CycleTime(c.cycle)
}

// NumPending returns the number of requests waiting for the coherence
// protocol.
func (c *Comp) NumPending() int {
	return c.pending.Len()
}

// NumReady returns the number of requests to be delivered on the next tick.
func (c *Comp) NumReady() int {
	return c.ready.Len()
}

// NumOutstanding returns the number of requests that have not completed.
func (c *Comp) NumOutstanding() int {
	return c.pending.Len() + c.ready.Len()
}

// BlockSize returns the number of bytes in a block.
func (c *Comp) BlockSize() int {
	return c.tags.BlockSize()
}

// Contains tells if the block that holds the address is valid in the cache.
func (c *Comp) Contains(addr uint64) bool {
	c.mustNotBeDestroyed()

	setID, tag := c.tags.DecomposeAddress(addr)
	_, found := c.tags.Lookup(setID, tag)

	return found
}

// Issue starts a memory request. The tags are updated immediately,
// regardless of whether the coherence protocol grants the permission. The
// callback is invoked on a later Tick, never inside Issue.
func (c *Comp) Issue(op Op, pid int, tag int64, callback Callback) {
	c.mustNotBeDestroyed()

	if callback == nil {
		panic("cache request must have a callback")
	}

	addr := c.tags.AlignAddress(op.Address)
	req := &pendingRequest{
		id:         c.idGenerator.Generate(),
		op:         op,
		tag:        tag,
		addr:       addr,
		pid:        pid,
		callback:   callback,
		issueCycle: c.cycle,
	}

	c.traceReqStart(req)
	c.access(req)

	req.granted = c.port.requestPermission(op, addr, pid)
	if req.granted {
		c.ready.PushFront(req)
		c.traceReqStep(req, "coherence_granted")
	} else {
		c.pending.PushFront(req)
		c.traceReqStep(req, "coherence_pending")
	}

	c.logger.Debug("request issued",
		zap.String("cache", c.name),
		zap.String("id", req.id),
		zap.Int("pid", pid),
		zap.Int64("tag", tag),
		zap.Stringer("op", op.Opcode),
		zap.Uint64("addr", addr),
		zap.Bool("granted", req.granted),
	)

	c.invokeRequestHook(HookPosReqIssue, req.info(req.granted))
}

func (c *Comp) access(req *pendingRequest) {
	setID, cacheTag := c.tags.DecomposeAddress(req.addr)
	set := c.tags.GetSet(setID)

	info := AccessInfo{
		ID:    req.id,
		PID:   req.pid,
		Op:    req.op,
		SetID: setID,
		Tag:   cacheTag,
	}

	wayID, hit := c.tags.Lookup(setID, cacheTag)
	if hit {
		c.victimFinder.Visit(set, wayID, true)
		c.traceReqStep(req, "hit")
	} else {
		wayID = c.victimFinder.FindVictim(set)

		victim := set.Blocks[wayID]
		if victim.IsValid {
			info.Evicted = true
			info.EvictedAddress = c.tags.ComposeAddress(setID, victim.Tag)
			c.traceReqStep(req, "evict")
		}

		c.tags.Install(setID, wayID, cacheTag)
		c.victimFinder.Visit(set, wayID, false)
		c.traceReqStep(req, "miss")
	}

	info.WayID = wayID
	info.Hit = hit

	c.logger.Debug("tags accessed",
		zap.String("cache", c.name),
		zap.String("id", req.id),
		zap.Int("set", setID),
		zap.Int("way", wayID),
		zap.Bool("hit", hit),
		zap.Bool("evicted", info.Evicted),
	)

	c.invokeAccessHook(info)
}

// handleCoherenceEvent moves the pending request that matches the processor
// and address to the ready queue. Events other than EventDataReceived are
// ignored.
func (c *Comp) handleCoherenceEvent(kind EventKind, pid int, addr uint64) {
	if kind != EventDataReceived {
		return
	}

	c.mustNotBeDestroyed()

	if c.pending.Len() == 0 {
		panic(fmt.Sprintf(
			"%s: data received for pid %d addr 0x%x with no pending request",
			c.name, pid, addr))
	}

	req, found := c.pending.RemoveFirst(func(r *pendingRequest) bool {
		return r.pid == pid && r.addr == addr
	})
	if !found {
		panic(fmt.Sprintf(
			"%s: data received for pid %d addr 0x%x matches no pending request",
			c.name, pid, addr))
	}

	c.ready.PushFront(req)
	c.traceReqStep(req, "data_received")

	c.logger.Debug("request promoted",
		zap.String("cache", c.name),
		zap.String("id", req.id),
		zap.Int("pid", pid),
		zap.Uint64("addr", addr),
	)

	c.invokeRequestHook(HookPosReqPromote, req.info(req.granted))
}

// Tick ticks the coherence protocol and then delivers every ready request.
// Requests that become ready while the coherence protocol ticks are
// delivered in the same cycle. Requests issued from within a callback are
// delivered on a later tick.
func (c *Comp) Tick() bool {
	c.mustNotBeDestroyed()

	c.cycle++

	madeProgress := c.port.tick()

	for _, req := range c.ready.TakeAll() {
		c.complete(req)

		madeProgress = true
	}

	return madeProgress
}

func (c *Comp) complete(req *pendingRequest) {
	if req.completed {
		panic(fmt.Sprintf("%s: request %s completed twice", c.name, req.id))
	}

	req.completed = true
	req.callback(req.pid, req.tag)

	c.traceReqEnd(req)

	info := req.info(req.granted)
	info.Latency = c.cycle - req.issueCycle
	c.invokeRequestHook(HookPosReqComplete, info)
}

// Finish is where statistics would be written. It writes nothing.
func (c *Comp) Finish(_ io.Writer) error {
	return nil
}

// Destroy releases the tags and the request queues. Requests that have not
// completed are dropped without invoking their callbacks.
func (c *Comp) Destroy() error {
	if c.destroyed {
		return ErrAlreadyDestroyed
	}

	if n := c.NumOutstanding(); n > 0 {
		c.logger.Warn("cache destroyed with outstanding requests",
			zap.String("cache", c.name),
			zap.Int("pending", c.pending.Len()),
			zap.Int("ready", c.ready.Len()),
		)
	}

	c.pending.Clear()
	c.ready.Clear()
	c.tags = nil
	c.victimFinder = nil
	c.destroyed = true

	return nil
}

func (c *Comp) mustNotBeDestroyed() {
	if c.destroyed {
		panic(fmt.Sprintf("%s: cache used after destroy", c.name))
	}
}
