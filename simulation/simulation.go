// Package simulation runs memory traces through a cache and provides the
// services a simulation needs: recording, monitoring and a component
// registry.
package simulation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/sim"
	"github.com/sarchlab/cachesim/tracing"
)

// A Simulation provides the services required to define a simulation.
type Simulation struct {
	id     string
	logger *zap.Logger

	dataRecorder datarecording.DataRecorder
	visTracer    *tracing.DBTracer
	memTracer    tracing.Tracer
	monitor      *monitoring.Monitor
	monitorURL   string

	clock         sim.TimeTeller
	components    []sim.Named
	compNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// CurrentTime returns the time of the first registered component that can
// tell time.
func (s *Simulation) CurrentTime() sim.VTimeInSec {
	if s.clock == nil {
		return 0
	}

	return s.clock.CurrentTime()
}

// GetDataRecorder returns the data recorder, or nil if recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitor, or an empty string.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// GetVisTracer returns the tracer that records tasks, or nil if recording
// is off.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// RegisterComponent registers a component with the simulation. The
// component is traced if recording is on and monitored if monitoring is on.
func (s *Simulation) RegisterComponent(c sim.Named) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	if t, ok := c.(sim.TimeTeller); ok && s.clock == nil {
		s.clock = t
	}

	if h, ok := c.(tracing.NamedHookable); ok && s.dataRecorder != nil {
		tracing.CollectTrace(h, s.visTracer)
		tracing.CollectTrace(h, s.memTracer)
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

// Components returns all registered components.
func (s *Simulation) Components() []sim.Named {
	return s.components
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) sim.Named {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// Terminate flushes the recorded data and stops the monitor.
func (s *Simulation) Terminate() {
	if s.visTracer != nil {
		s.visTracer.Terminate()
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil {
			s.logger.Error("closing data recorder", zap.Error(err))
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.StopServer(ctx); err != nil {
			s.logger.Error("stopping monitor", zap.Error(err))
		}
	}
}
