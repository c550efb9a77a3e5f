package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succeedAfter(n int32) (ConditionFunc, *int32) {
	var calls int32
	return func(context.Context) bool {
		return atomic.AddInt32(&calls, 1) >= n
	}, &calls
}

func TestUntilImmediateSuccess(t *testing.T) {
	cond, calls := succeedAfter(1)
	require.NoError(t, Until(context.Background(), Forever(Fixed(time.Hour)), cond))
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
}

func TestUntilRetriesUntilSuccess(t *testing.T) {
	cond, calls := succeedAfter(3)
	require.NoError(t, Until(context.Background(), Forever(Fixed(time.Millisecond)), cond))
	assert.EqualValues(t, 3, atomic.LoadInt32(calls))
}

func TestUntilTimeout(t *testing.T) {
	err := Until(context.Background(), WithTimeout(Fixed(time.Millisecond), 20*time.Millisecond), func(context.Context) bool { return false })
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntilParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Until(ctx, Forever(Fixed(time.Millisecond)), func(context.Context) bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestBackoffNext(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 35 * time.Millisecond, Factor: 2}
	assert.Equal(t, 20*time.Millisecond, b.next(10*time.Millisecond))
	assert.Equal(t, 35*time.Millisecond, b.next(20*time.Millisecond))
	assert.Equal(t, 35*time.Millisecond, b.next(35*time.Millisecond))

	assert.Equal(t, time.Second, Fixed(time.Second).next(time.Second))
}

func TestForAllReportsEveryUnhealthyMember(t *testing.T) {
	healthy, _ := succeedAfter(2)
	never := func(context.Context) bool { return false }

	err := ForAll(context.Background(), WithTimeout(Fixed(time.Millisecond), 30*time.Millisecond),
		Probe{Name: "dc-TORONTO_type-SHARD_replSet-ONTARIO_dcid-0", Check: healthy},
		Probe{Name: "dc-WINNIPEG_type-SHARD_replSet-ONTARIO_dcid-0", Check: never},
		Probe{Name: "dc-MONTREAL_type-SHARD_replSet-ONTARIO_dcid-0", Check: never},
	)

	var unhealthy *UnhealthyError
	require.ErrorAs(t, err, &unhealthy)
	assert.Equal(t, []string{
		"dc-MONTREAL_type-SHARD_replSet-ONTARIO_dcid-0",
		"dc-WINNIPEG_type-SHARD_replSet-ONTARIO_dcid-0",
	}, unhealthy.Members)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestForAllSucceeds(t *testing.T) {
	a, _ := succeedAfter(1)
	b, _ := succeedAfter(4)
	assert.NoError(t, ForAll(context.Background(), Forever(Fixed(time.Millisecond)), Probe{Name: "a", Check: a}, Probe{Name: "b", Check: b}))
	assert.NoError(t, ForAll(context.Background(), Forever(Fixed(time.Millisecond))))
}
