package cache

import "fmt"

// EventKind identifies the kind of state change that a coherence protocol
// reports back to the cache.
type EventKind int

// Kinds of coherence events. The cache only acts on EventDataReceived.
const (
	EventDataReceived EventKind = iota
	EventInvalidate
	EventDowngrade
	EventWriteback
)

func (k EventKind) String() string {
	switch k {
	case EventDataReceived:
		return "DataReceived"
	case EventInvalidate:
		return "Invalidate"
	case EventDowngrade:
		return "Downgrade"
	case EventWriteback:
		return "Writeback"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Permission is the answer of a coherence protocol to a permission request.
type Permission int

// Possible answers to a permission request.
const (
	PermissionPending Permission = iota
	PermissionGranted
)

func (p Permission) String() string {
	if p == PermissionGranted {
		return "Granted"
	}

	return "Pending"
}

// CompletionHandler receives the events of a coherence protocol.
type CompletionHandler func(kind EventKind, pid int, addr uint64)

// Coherence is the capability a coherence protocol exposes to the cache.
type Coherence interface {
	// PermReq asks for permission to access a block-aligned address.
	// PermissionPending means that an EventDataReceived with the same
	// processor and address will follow on a later tick.
	PermReq(isLoad bool, addr uint64, pid int) Permission

	// RegisterCacheInterface registers the handler that receives the events
	// of the protocol.
	RegisterCacheInterface(handler CompletionHandler)

	// Tick advances the protocol by one cycle.
	Tick() bool
}

// coherencePort binds the cache to a coherence protocol.
type coherencePort struct {
	coherence Coherence
}

func newCoherencePort(
	coherence Coherence,
	handler CompletionHandler,
) *coherencePort {
	coherence.RegisterCacheInterface(handler)

	return &coherencePort{coherence: coherence}
}

func (p *coherencePort) requestPermission(op Op, addr uint64, pid int) bool {
	return p.coherence.PermReq(op.Opcode == OpLoad, addr, pid) ==
		PermissionGranted
}

func (p *coherencePort) tick() bool {
	return p.coherence.Tick()
}
