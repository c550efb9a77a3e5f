package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultOK, Result(nil))
	assert.Equal(t, ResultFailed, Result(errors.New("boom")))
	assert.Equal(t, ResultOK, BoolResult(true))
	assert.Equal(t, ResultFailed, BoolResult(false))
}

func TestHealthProbesCounter(t *testing.T) {
	before := testutil.ToFloat64(HealthProbes.WithLabelValues("SHARD", ResultFailed))
	HealthProbes.WithLabelValues("SHARD", ResultFailed).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(HealthProbes.WithLabelValues("SHARD", ResultFailed)))
}

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	tp, err := SetupTracing(context.Background(), "", zap.S())
	require.NoError(t, err)
	assert.Nil(t, tp)

	_, span := StartSpan(context.Background(), "topology.test")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}
