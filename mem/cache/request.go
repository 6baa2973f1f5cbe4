package cache

import "fmt"

// Opcode is the kind of a memory operation.
type Opcode int

// Memory operations that the cache serves.
const (
	OpLoad Opcode = iota
	OpStore
)

func (o Opcode) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	default:
		return fmt.Sprintf("Opcode(%d)", int(o))
	}
}

// Op is a memory operation issued by a processor.
type Op struct {
	Opcode  Opcode
	Address uint64
}

// Callback is invoked once when a request completes.
type Callback func(pid int, tag int64)

type pendingRequest struct {
	id       string
	op       Op
	tag      int64
	addr     uint64
	pid      int
	callback Callback

	granted    bool
	completed  bool
	issueCycle uint64
}

// A requestQueue holds requests in the order they are delivered. New
// requests are pushed to the front.
type requestQueue struct {
	requests []*pendingRequest
}

func (q *requestQueue) Len() int {
	return len(q.requests)
}

func (q *requestQueue) PushFront(req *pendingRequest) {
	q.requests = append(q.requests, nil)
	copy(q.requests[1:], q.requests)
	q.requests[0] = req
}

// RemoveFirst removes and returns the first request that matches.
func (q *requestQueue) RemoveFirst(
	match func(req *pendingRequest) bool,
) (*pendingRequest, bool) {
	for i, req := range q.requests {
		if match(req) {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return req, true
		}
	}

	return nil, false
}

// TakeAll empties the queue and returns its requests in queue order.
func (q *requestQueue) TakeAll() []*pendingRequest {
	requests := q.requests
	q.requests = nil

	return requests
}

func (q *requestQueue) Clear() {
	q.requests = nil
}
