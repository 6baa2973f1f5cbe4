package simulation

import (
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/cachesim/datarecording"
	memtrace "github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	recordingOn    bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
	logger         *zap.Logger
}

// MakeBuilder creates a new builder. Recording and monitoring are off by
// default.
func MakeBuilder() Builder {
	return Builder{}
}

// WithRecording makes the simulation record the traces of every registered
// component into a SQLite database.
func (b Builder) WithRecording() Builder {
	b.recordingOn = true
	return b
}

// WithOutputFileName sets the name of the database file, without the
// .sqlite3 extension.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMonitoring makes the simulation serve its state over HTTP.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() error {
	if !b.monitorOn && b.monitorPort != 0 {
		return fmt.Errorf(
			"monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		return fmt.Errorf(
			"output file cannot be set when recording is disabled")
	}

	return nil
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if err := b.parametersMustBeValid(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:            xid.New().String(),
		logger:        b.logger,
		compNameIndex: make(map[string]int),
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "cachesim_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
		s.visTracer = tracing.NewDBTracer(s, s.dataRecorder)
		s.memTracer = memtrace.NewDBTracer(s.dataRecorder, s)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithLogger(s.logger)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterTimeTeller(s)

		url, err := s.monitor.StartServer()
		if err != nil {
			s.Terminate()
			return nil, err
		}

		s.monitorURL = url
	}

	s.logger.Info("simulation created",
		zap.String("id", s.id),
		zap.Bool("recording", b.recordingOn),
		zap.Bool("monitoring", b.monitorOn),
	)

	return s, nil
}
