package workflow

import (
	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
)

// okStatus indicates that the step is done and the orchestration may proceed
type okStatus struct {
	commonStatus
}

func OK() *okStatus {
	return &okStatus{}
}

func (o *okStatus) WithWarnings(warnings status.Warnings) *okStatus {
	o.warnings = warnings
	return o
}

func (o *okStatus) IsOK() bool {
	return true
}

func (o *okStatus) Merge(other Status) Status {
	// any other status takes precedence over OK
	if other == nil {
		return o
	}
	if other.IsOK() {
		return OK().WithWarnings(mergeWarnings(o.warnings, other.Warnings()))
	}
	return other
}

func (o *okStatus) OnErrorPrepend(_ string) Status {
	return o
}

func (o *okStatus) Phase() status.Phase {
	return status.PhaseRunning
}

func (o *okStatus) Err() error {
	return nil
}

func (o *okStatus) Log(log *zap.SugaredLogger) {
	for _, w := range o.warnings {
		log.Warn(string(w))
	}
}

func mergeWarnings(a, b status.Warnings) status.Warnings {
	var out status.Warnings
	for _, w := range append(append(status.Warnings{}, a...), b...) {
		out = out.AddIfNotExists(w)
	}
	return out
}
