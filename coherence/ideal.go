// Package coherence provides coherence protocols that a cache can consult
// before it reports a memory access as complete.
package coherence

import (
	"github.com/sarchlab/cachesim/mem/cache"
)

// Ideal is a coherence protocol that grants every permission request
// immediately. It never reports any event.
type Ideal struct {
	handler cache.CompletionHandler
	granted uint64
}

// NewIdeal creates a new Ideal protocol.
func NewIdeal() *Ideal {
	return &Ideal{}
}

// Name returns the name of the protocol.
func (p *Ideal) Name() string {
	return "ideal"
}

// PermReq always grants the permission.
func (p *Ideal) PermReq(_ bool, _ uint64, _ int) cache.Permission {
	p.granted++
	return cache.PermissionGranted
}

// RegisterCacheInterface records the handler. Ideal never invokes it.
func (p *Ideal) RegisterCacheInterface(handler cache.CompletionHandler) {
	p.handler = handler
}

// Tick does nothing.
func (p *Ideal) Tick() bool {
	return false
}

// NumGranted returns the number of permission requests answered.
func (p *Ideal) NumGranted() uint64 {
	return p.granted
}
