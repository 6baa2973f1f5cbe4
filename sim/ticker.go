package sim

// A Ticker is an object that updates states with ticks.
type Ticker interface {
	// Tick advances the object by one cycle. It returns true if the object
	// made any progress in the cycle.
	Tick() bool
}
