package manager

// State represents lifecycle state of the manager.
type State string

const (
	StateReady    State = "ready"
	StateDraining State = "draining"
	StateClosed   State = "closed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State    State
	ModelID  string
	QueueLen int
	Inflight int
	Err      string
}
