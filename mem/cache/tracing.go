package cache

import (
	"github.com/sarchlab/cachesim/tracing"
)

func reqTaskID(req *pendingRequest) string {
	return "cache-req-" + req.id
}

func (c *Comp) traceReqStart(req *pendingRequest) {
	tracing.StartTask(
		reqTaskID(req),
		"",
		c,
		"req_in",
		req.op.Opcode.String(),
		req.info(false),
	)
}

func (c *Comp) traceReqStep(req *pendingRequest, what string) {
	tracing.AddTaskStep(reqTaskID(req), c, what)
}

func (c *Comp) traceReqEnd(req *pendingRequest) {
	tracing.EndTask(reqTaskID(req), c)
}
