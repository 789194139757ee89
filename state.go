package reactor

// ReactorState represents the lifecycle state of a [Reactor].
//
// State Machine:
//
//	StateInitial → StateRunning       [Run() / Loop()]
//	StateRunning → StateDispatching   [dispatch of a batch]
//	StateDispatching → StateRunning   [batch complete]
//	StateRunning → StateQuitting      [Loop() observes RequestQuit()]
//	StateQuitting → StateFinished     [Loop() returns]
//	StateFinished → (terminal)
//
// Run leaves the reactor in StateRunning between calls, whether or not it
// dispatched anything.
type ReactorState uint8

const (
	// StateInitial indicates the reactor has been created but not yet run.
	StateInitial ReactorState = iota
	// StateRunning indicates the reactor is between batches, or blocked in a wait.
	StateRunning
	// StateDispatching indicates callbacks of a batch are being invoked.
	StateDispatching
	// StateQuitting indicates Loop has observed a quit request and is returning.
	StateQuitting
	// StateFinished indicates Loop has returned after a quit request.
	StateFinished
)

// String returns a human-readable representation of the state.
func (s ReactorState) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateRunning:
		return "Running"
	case StateDispatching:
		return "Dispatching"
	case StateQuitting:
		return "Quitting"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// quitController holds the pending-exit flag and code.
type quitController struct {
	code      int
	requested bool
}

func (q *quitController) request(code int) {
	q.requested = true
	q.code = code
}
