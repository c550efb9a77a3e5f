package workflow

import (
	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/stringutil"
)

// pendingStatus indicates that the orchestration must be suspended until something outside of it happens, most
// of all servers becoming healthy
type pendingStatus struct {
	commonStatus
	notReady []string
}

func Pending(msg string, params ...interface{}) *pendingStatus {
	return &pendingStatus{commonStatus: newCommonStatus(msg, params...)}
}

func (p *pendingStatus) WithWarnings(warnings status.Warnings) *pendingStatus {
	p.warnings = warnings
	return p
}

// WithNotReady records the servers the step is waiting for.
func (p *pendingStatus) WithNotReady(names ...string) *pendingStatus {
	p.notReady = append(p.notReady, names...)
	return p
}

func (p pendingStatus) NotReady() []string {
	return p.notReady
}

func (p pendingStatus) IsOK() bool {
	return false
}

func (p pendingStatus) Merge(other Status) Status {
	switch v := other.(type) {
	// Pending messages are just merged together
	case pendingStatus:
		return mergedPending(p, v)
	case *pendingStatus:
		return mergedPending(p, *v)
	case failedStatus, *failedStatus, invalidStatus, *invalidStatus:
		return v
	}
	return p
}

func (p pendingStatus) OnErrorPrepend(msg string) Status {
	p.commonStatus.prependMsg(msg)
	return p
}

func (p pendingStatus) Phase() status.Phase {
	return status.PhasePending
}

func (p pendingStatus) Err() error {
	return &stepError{msg: p.msg}
}

func (p pendingStatus) Log(log *zap.SugaredLogger) {
	log.Infow(stringutil.UpperCaseFirstChar(p.msg), "notReady", p.notReady)
}

func mergedPending(p1, p2 pendingStatus) pendingStatus {
	p := Pending("%s, %s", p1.msg, p2.msg)
	p.warnings = mergeWarnings(p1.warnings, p2.warnings)
	p.notReady = make([]string, 0, len(p1.notReady)+len(p2.notReady))
	p.notReady = append(p.notReady, p1.notReady...)
	p.notReady = append(p.notReady, p2.notReady...)
	return *p
}
