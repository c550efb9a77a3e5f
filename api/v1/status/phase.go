package status

type Phase string

const (
	// PhaseReconciling means an orchestration step is in progress
	PhaseReconciling Phase = "Reconciling"

	// PhasePending means the step has not failed but is waiting for something to happen (servers becoming
	// healthy, a router being available)
	PhasePending Phase = "Pending"

	// PhaseRunning means the step, or the whole topology, has been applied
	PhaseRunning Phase = "Running"

	// PhaseFailed means the step failed and the topology is only partially applied
	PhaseFailed Phase = "Failed"
)

// Terminal returns true if no further progress is expected without operator action.
func (p Phase) Terminal() bool {
	return p == PhaseRunning || p == PhaseFailed
}
