package timing

import "github.com/sarchlab/vpsim/sim/hooking"

// An Engine is a unit that keeps the discrete event simulation run.
//
// Only one goroutine may drive Run, Step and StepUntil. Stop, Quit and
// CurrentTime are safe from any goroutine.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run processes events until the queue drains, a component quits, or a
	// stop is requested. It returns the time at which dispatch ceased.
	Run() (VTime, error)

	// Step runs for duration time units past the current time.
	Step(duration VTime) (VTime, error)

	// StepUntil processes every event up to and including timestamp, then
	// moves the clock to timestamp.
	StepUntil(timestamp VTime) (VTime, error)

	// Stop asks the dispatch loop to halt at its next safe point and returns
	// the current time.
	Stop() VTime

	// ClearStop drops a stop request that no dispatch loop consumed.
	ClearStop()

	// Quit reports that the simulated program exited with the given code.
	Quit(exitCode int)

	// Finished reports whether the simulated program has exited, and its
	// exit code.
	Finished() (bool, int)

	// RegisterNotifier adds an observer that is told the time of every halt.
	RegisterNotifier(n Notifier)

	// RegisterSimulationEndHandler registers a handler that perform some
	// actions after the simulation is finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Update calls every registered notifier with now.
	Update(now VTime)
}
