package workflow

import (
	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
	"github.com/mongodb/mongodb-dc-topology/pkg/util/stringutil"
)

// failedStatus indicates that the step failed. Whatever was applied before stays applied, re-running the
// orchestration resumes from the failed step.
type failedStatus struct {
	commonStatus
	err error
}

func Failed(err error) *failedStatus {
	return &failedStatus{commonStatus: newCommonStatus("%s", err.Error()), err: err}
}

func (f *failedStatus) WithWarnings(warnings status.Warnings) *failedStatus {
	f.warnings = warnings
	return f
}

func (f failedStatus) IsOK() bool {
	return false
}

func (f failedStatus) Merge(other Status) Status {
	switch v := other.(type) {
	// errors are concatenated
	case failedStatus:
		return mergedFailed(f, v)
	case *failedStatus:
		return mergedFailed(f, *v)
	case invalidStatus, *invalidStatus:
		return other
	}
	return f
}

func (f failedStatus) OnErrorPrepend(msg string) Status {
	f.commonStatus.prependMsg(msg)
	return f
}

func (f failedStatus) Phase() status.Phase {
	return status.PhaseFailed
}

func (f failedStatus) Err() error {
	return &stepError{msg: f.msg, cause: f.err}
}

func (f failedStatus) Log(log *zap.SugaredLogger) {
	log.Error(stringutil.UpperCaseFirstChar(f.msg))
}

func mergedFailed(p1, p2 failedStatus) failedStatus {
	return failedStatus{
		commonStatus: commonStatus{msg: p1.msg + ", " + p2.msg, warnings: mergeWarnings(p1.warnings, p2.warnings)},
		err:          p1.err,
	}
}
