package workflow

import (
	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/stringutil"
)

// invalidStatus indicates that the topology itself is wrong. Retrying cannot help until it is fixed.
type invalidStatus struct {
	commonStatus
	cause error
}

func Invalid(msg string, params ...interface{}) *invalidStatus {
	return &invalidStatus{commonStatus: newCommonStatus(msg, params...)}
}

func (f *invalidStatus) WithWarnings(warnings status.Warnings) *invalidStatus {
	f.warnings = warnings
	return f
}

// WithCause keeps the error that made the topology invalid reachable from Err.
func (f *invalidStatus) WithCause(err error) *invalidStatus {
	f.cause = err
	return f
}

func (f invalidStatus) IsOK() bool {
	return false
}

func (f invalidStatus) Merge(other Status) Status {
	switch v := other.(type) {
	// errors are concatenated
	case invalidStatus:
		return mergedInvalid(f, v)
	case *invalidStatus:
		return mergedInvalid(f, *v)
	}
	// Invalid configuration dominates over anything else
	return f
}

func (f invalidStatus) OnErrorPrepend(msg string) Status {
	f.commonStatus.prependMsg(msg)
	return f
}

func (f invalidStatus) Phase() status.Phase {
	return status.PhaseFailed
}

func (f invalidStatus) Err() error {
	return &stepError{msg: f.msg, cause: f.cause}
}

func (f invalidStatus) Log(log *zap.SugaredLogger) {
	log.Error(stringutil.UpperCaseFirstChar(f.msg))
}

func mergedInvalid(p1, p2 invalidStatus) invalidStatus {
	p := Invalid("%s, %s", p1.msg, p2.msg)
	p.warnings = mergeWarnings(p1.warnings, p2.warnings)
	p.cause = p1.cause
	if p.cause == nil {
		p.cause = p2.cause
	}
	return *p
}
