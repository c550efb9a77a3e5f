// Package workflow holds the result values of orchestration steps. A step returns a Status instead of an error so
// that the caller can tell "keep going", "wait and retry" and "the topology itself is wrong" apart, and merge the
// results of steps that ran side by side.
package workflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
)

// Status serves as a container holding the outcome of an orchestration step.
type Status interface {
	// Merge performs the Merge of current status with the status returned from the other operation and returns the
	// new status
	Merge(other Status) Status

	// IsOK returns true if there was no signal to interrupt the orchestration
	IsOK() bool

	// OnErrorPrepend prepends the msg in the case of an error status
	OnErrorPrepend(msg string) Status

	// Phase is the phase the status should get
	Phase() status.Phase

	// Warnings are the non-fatal problems noticed while running the step
	Warnings() status.Warnings

	// Err returns the status as an error, nil for OK
	Err() error

	// Log performs logging of the status at some level if necessary
	Log(log *zap.SugaredLogger)
}

type commonStatus struct {
	msg      string
	warnings status.Warnings
}

func newCommonStatus(msg string, params ...interface{}) commonStatus {
	return commonStatus{msg: fmt.Sprintf(msg, params...)}
}

func (c *commonStatus) prependMsg(msg string) {
	c.msg = msg + " " + c.msg
}

func (c commonStatus) Warnings() status.Warnings {
	return c.warnings
}

// stepError is the error form of a non-OK status. The message carries every prefix added on the way up while the
// cause stays reachable through errors.Is/As.
type stepError struct {
	msg   string
	cause error
}

func (e *stepError) Error() string {
	return e.msg
}

func (e *stepError) Unwrap() error {
	return e.cause
}
