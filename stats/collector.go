// Package stats collects cache statistics through hooks and encodes them
// into reports.
package stats

import (
	"sort"
	"sync"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/sim"
)

// ProcessorStats are the counters of one processor.
type ProcessorStats struct {
	PID          int    `json:"pid" msgpack:"pid" cbor:"pid"`
	Loads        uint64 `json:"loads" msgpack:"loads" cbor:"loads"`
	Stores       uint64 `json:"stores" msgpack:"stores" cbor:"stores"`
	Hits         uint64 `json:"hits" msgpack:"hits" cbor:"hits"`
	Misses       uint64 `json:"misses" msgpack:"misses" cbor:"misses"`
	Evictions    uint64 `json:"evictions" msgpack:"evictions" cbor:"evictions"`
	Granted      uint64 `json:"granted" msgpack:"granted" cbor:"granted"`
	Promotions   uint64 `json:"promotions" msgpack:"promotions" cbor:"promotions"`
	Completions  uint64 `json:"completions" msgpack:"completions" cbor:"completions"`
	TotalLatency uint64 `json:"total_latency" msgpack:"total_latency" cbor:"total_latency"`
}

func (s *ProcessorStats) add(o ProcessorStats) {
	s.Loads += o.Loads
	s.Stores += o.Stores
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.Evictions += o.Evictions
	s.Granted += o.Granted
	s.Promotions += o.Promotions
	s.Completions += o.Completions
	s.TotalLatency += o.TotalLatency
}

// HitRate returns the fraction of accesses that hit.
func (s ProcessorStats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}

	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// AverageLatency returns the average number of cycles from issue to
// completion.
func (s ProcessorStats) AverageLatency() float64 {
	if s.Completions == 0 {
		return 0
	}

	return float64(s.TotalLatency) / float64(s.Completions)
}

// A Report summarizes what a cache has done.
type Report struct {
	Cache      string           `json:"cache" msgpack:"cache" cbor:"cache"`
	// Cycles is the cycle of the last event the collector saw.
	Cycles     uint64           `json:"cycles" msgpack:"cycles" cbor:"cycles"`
	Total      ProcessorStats   `json:"total" msgpack:"total" cbor:"total"`
	HitRate    float64          `json:"hit_rate" msgpack:"hit_rate" cbor:"hit_rate"`
	AvgLatency float64          `json:"avg_latency" msgpack:"avg_latency" cbor:"avg_latency"`
	Processors []ProcessorStats `json:"processors" msgpack:"processors" cbor:"processors"`
}

// A Collector is a hook that counts the events of a cache.
type Collector struct {
	lock       sync.Mutex
	processors map[int]*ProcessorStats
	cycles     uint64
	cacheName  string
}

// NewCollector creates a Collector.
func NewCollector() *Collector {
	return &Collector{
		processors: make(map[int]*ProcessorStats),
	}
}

// Func counts the event reported at a hook position of the cache.
func (c *Collector) Func(ctx sim.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if comp, ok := ctx.Domain.(*cache.Comp); ok {
		c.cacheName = comp.Name()
		c.cycles = comp.CurrentCycle()
	}

	switch ctx.Pos {
	case cache.HookPosAccess:
		c.countAccess(ctx.Item.(cache.AccessInfo))
	case cache.HookPosReqIssue:
		c.countIssue(ctx.Item.(cache.RequestInfo))
	case cache.HookPosReqPromote:
		c.processor(ctx.Item.(cache.RequestInfo).PID).Promotions++
	case cache.HookPosReqComplete:
		info := ctx.Item.(cache.RequestInfo)
		p := c.processor(info.PID)
		p.Completions++
		p.TotalLatency += info.Latency
	}
}

func (c *Collector) countAccess(info cache.AccessInfo) {
	p := c.processor(info.PID)

	if info.Hit {
		p.Hits++
	} else {
		p.Misses++
	}

	if info.Evicted {
		p.Evictions++
	}
}

func (c *Collector) countIssue(info cache.RequestInfo) {
	p := c.processor(info.PID)

	if info.Op.Opcode == cache.OpLoad {
		p.Loads++
	} else {
		p.Stores++
	}

	if info.Granted {
		p.Granted++
	}
}

func (c *Collector) processor(pid int) *ProcessorStats {
	p, ok := c.processors[pid]
	if !ok {
		p = &ProcessorStats{PID: pid}
		c.processors[pid] = p
	}

	return p
}

// Report returns the counters collected so far, with processors in
// increasing ID order.
func (c *Collector) Report() Report {
	c.lock.Lock()
	defer c.lock.Unlock()

	r := Report{
		Cache:      c.cacheName,
		Cycles:     c.cycles,
		Processors: make([]ProcessorStats, 0, len(c.processors)),
	}

	for _, p := range c.processors {
		r.Processors = append(r.Processors, *p)
		r.Total.add(*p)
	}

	sort.Slice(r.Processors, func(i, j int) bool {
		return r.Processors[i].PID < r.Processors[j].PID
	})

	r.Total.PID = -1
	r.HitRate = r.Total.HitRate()
	r.AvgLatency = r.Total.AverageLatency()

	return r
}
