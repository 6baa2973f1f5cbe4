package cache

import "github.com/sarchlab/cachesim/sim"

// Hook positions of the cache.
var (
	// HookPosReqIssue is triggered after a request is issued. Item is a
	// RequestInfo.
	HookPosReqIssue = &sim.HookPos{Name: "CacheReqIssue"}

	// HookPosAccess is triggered after the tags are looked up and updated.
	// Item is an AccessInfo.
	HookPosAccess = &sim.HookPos{Name: "CacheAccess"}

	// HookPosReqPromote is triggered when a pending request receives its
	// data. Item is a RequestInfo.
	HookPosReqPromote = &sim.HookPos{Name: "CacheReqPromote"}

	// HookPosReqComplete is triggered after the callback of a request
	// returns. Item is a RequestInfo.
	HookPosReqComplete = &sim.HookPos{Name: "CacheReqComplete"}
)

// RequestInfo describes a request at a hook position.
type RequestInfo struct {
	ID      string
	PID     int
	Tag     int64
	Op      Op
	Address uint64
	Granted bool

	// Latency is the number of cycles between issue and completion. It is
	// only set at HookPosReqComplete.
	Latency uint64
}

// AccessInfo describes how an access changed the tags.
type AccessInfo struct {
	ID    string
	PID   int
	Op    Op
	SetID int
	WayID int
	Tag   uint64
	Hit   bool

	// Evicted is true when a valid block was replaced. EvictedAddress is the
	// block-aligned address it held.
	Evicted        bool
	EvictedAddress uint64
}

func (c *Comp) invokeRequestHook(pos *sim.HookPos, info RequestInfo) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   info,
	})
}

func (c *Comp) invokeAccessHook(info AccessInfo) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item:   info,
	})
}

func (r *pendingRequest) info(granted bool) RequestInfo {
	return RequestInfo{
		ID:      r.id,
		PID:     r.pid,
		Tag:     r.tag,
		Op:      r.op,
		Address: r.addr,
		Granted: granted,
	}
}
