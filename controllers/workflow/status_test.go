package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
)

func TestOnErrorPrepend(t *testing.T) {
	result := Pending("my message")
	decoratedResult := result.OnErrorPrepend("some prefix").(pendingStatus)
	assert.Equal(t, "some prefix my message", decoratedResult.msg)

	failedResult := Failed(xerrors.Errorf("my failed result"))
	failedDecoratedResult := failedResult.OnErrorPrepend("failed wrapper").(failedStatus)
	assert.Equal(t, "failed wrapper my failed result", failedDecoratedResult.msg)

	failedValidationResult := Invalid("my failed validation")
	failedDecoratedValidationResult := failedValidationResult.OnErrorPrepend("failed wrapper").(invalidStatus)
	assert.Equal(t, "failed wrapper my failed validation", failedDecoratedValidationResult.msg)

	assert.True(t, OK().OnErrorPrepend("ignored").IsOK())
}

func TestMerge(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, status.PhasePending, OK().Merge(Pending("wait")).Phase())
	assert.Equal(t, status.PhaseFailed, Pending("wait").Merge(Failed(cause)).Phase())

	merged := Pending("a").WithNotReady("x").Merge(Pending("b").WithNotReady("y")).(pendingStatus)
	assert.Equal(t, "a, b", merged.msg)
	assert.Equal(t, []string{"x", "y"}, merged.NotReady())

	failed := Failed(cause).Merge(Failed(errors.New("bang")))
	assert.Equal(t, "boom, bang", failed.Err().Error())
	assert.ErrorIs(t, failed.Err(), cause)

	invalid := Failed(cause).Merge(Invalid("bad topology"))
	assert.Equal(t, "bad topology", invalid.Err().Error())
	assert.Equal(t, "bad topology", Invalid("bad topology").Merge(Failed(cause)).Err().Error())
}

func TestOKMergeKeepsWarnings(t *testing.T) {
	s := OK().WithWarnings(status.Warnings{"first"}).Merge(OK().WithWarnings(status.Warnings{"second"}))
	assert.True(t, s.IsOK())
	assert.NoError(t, s.Err())
	assert.Equal(t, status.Warnings{"first;", "second"}, s.Warnings())
}

func TestErrKeepsCause(t *testing.T) {
	cause := errors.New("cause")

	err := Failed(cause).OnErrorPrepend("step:").Err()
	assert.Equal(t, "step: cause", err.Error())
	assert.ErrorIs(t, err, cause)

	err = Invalid("bad").WithCause(cause).Err()
	assert.ErrorIs(t, err, cause)

	assert.EqualError(t, Pending("waiting for %d servers", 2).Err(), "waiting for 2 servers")
}

func TestRunInGivenOrder(t *testing.T) {
	var calls []int
	step := func(i int, s Status) func() Status {
		return func() Status {
			calls = append(calls, i)
			return s
		}
	}

	result := RunInGivenOrder(true, step(1, OK()), step(2, OK()), step(3, OK()))
	assert.True(t, result.IsOK())
	assert.Equal(t, []int{1, 2, 3}, calls)

	calls = nil
	result = RunInGivenOrder(false, step(1, OK()), step(2, Pending("wait")), step(3, OK()))
	assert.False(t, result.IsOK())
	assert.Equal(t, []int{3, 2}, calls)

	calls = nil
	result = RunInGivenOrder(true, step(1, OK().WithWarnings(status.Warnings{"w"})), step(2, OK()))
	assert.Equal(t, status.Warnings{"w"}, result.Warnings())
}
