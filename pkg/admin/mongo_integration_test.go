package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// startReplSetMongod runs a single mongod started with --replSet but not initiated yet.
func startReplSetMongod(t *testing.T) Address {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			Cmd:          []string{"mongod", "--replSet", "rs0", "--bind_ip_all", "--port", "27017"},
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)
	return Address{Host: host, Port: port.Int()}
}

func TestMongoClientReplSetInitiateIsAlreadyInitializedOnRerun(t *testing.T) {
	addr := startReplSetMongod(t)
	ctx := context.Background()

	client, err := NewMongoConnector(10*time.Second, zap.S()).Connect(ctx, addr, true)
	require.NoError(t, err)
	defer client.Close(ctx)

	require.NoError(t, client.Ping(ctx))

	cfg := ReplSetConfig{ID: "rs0", Members: []ReplSetMember{{ID: 0, Host: "localhost:27017", Priority: 1}}}
	resp, err := client.ReplSetInitiate(ctx, cfg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp["ok"])

	_, err = client.ReplSetInitiate(ctx, cfg)
	require.Error(t, err)
	assert.True(t, IsAlreadyInitialized(err), "unexpected error %v", err)
}
