package weather

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/mongodb/mongodb-dc-topology/pkg/weather"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) Get(ctx context.Context, lon, lat float64) (weather.Record, error) {
	args := m.Called(ctx, lon, lat)
	return args.Get(0).(weather.Record), args.Error(1)
}

func (m *mockAPI) Post(ctx context.Context, rec weather.Record) (weather.InsertResult, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(weather.InsertResult), args.Error(1)
}

func TestRunSample(t *testing.T) {
	api := &mockAPI{}
	api.On("Post", mock.Anything, mock.Anything).Return(weather.InsertResult{Router: "dc-TORONTO_type-ROUTER_dcid-0", ID: "id"}, nil).Times(4)
	api.On("Get", mock.Anything, -83.0, 42.0).Return(weather.Record{Location: "TORONTO", DateTime: "TODAY", DistanceToWeatherStation: ptr.To(519000.0)}, nil).Once()
	api.On("Get", mock.Anything, -74.0, 45.0).Return(weather.Record{Location: "OTTAWA", DateTime: "TODAY", DistanceToWeatherStation: ptr.To(78000.0)}, nil).Once()

	var out bytes.Buffer
	ids, err := RunSample(context.Background(), &out, api)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "id", "id", "id"}, ids)
	assert.Contains(t, out.String(), "Stored OTTAWA TODAY as id through dc-TORONTO_type-ROUTER_dcid-0")
	assert.Contains(t, out.String(), "Weather in WINDSOR: TORONTO TODAY (station 519 km away)")
	assert.Contains(t, out.String(), "Weather in CORNWALL: OTTAWA TODAY (station 78 km away)")
	api.AssertExpectations(t)
}

func TestRunSampleStopsOnFailedPost(t *testing.T) {
	api := &mockAPI{}
	api.On("Post", mock.Anything, mock.Anything).Return(weather.InsertResult{}, errors.New("weather api returned 500: No routers online")).Once()

	ids, err := RunSample(context.Background(), &bytes.Buffer{}, api)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTTAWA TODAY")
	assert.Empty(t, ids)
	api.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}
