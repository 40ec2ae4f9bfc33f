package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcclickhouse "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/botctl/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container and returns the
// native protocol address. It skips the test when Docker is unavailable.
func setupClickHouseContainer(ctx context.Context, t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("requires Docker")
	}

	c, err := tcclickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		tcclickhouse.WithUsername("default"),
		tcclickhouse.WithPassword(""),
		tcclickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start ClickHouse container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return host + ":" + port.Port()
}

func TestNewRejectsBadTable(t *testing.T) {
	_, err := New(context.Background(), Options{Addr: "localhost:1", Table: "events; DROP TABLE x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ClickHouse table name")
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := New(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestSinkSendAndRecent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	addr := setupClickHouseContainer(ctx, t)

	sink, err := New(ctx, Options{Addr: addr, Table: "bot_history"})
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	base := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: base, Process: "energy-bot", PID: 321, LogPath: "logs/bot_20261017.log"},
		{Type: history.EventForcedStop, OccurredAt: base.Add(10 * time.Second), Process: "energy-bot", PID: 321},
	}
	for _, e := range events {
		require.NoError(t, sink.Send(ctx, e))
	}

	got, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, history.EventForcedStop, got[0].Type)
	assert.Equal(t, 321, got[0].PID)
	assert.True(t, got[1].OccurredAt.Equal(base))
	assert.Equal(t, "logs/bot_20261017.log", got[1].LogPath)

	// Creating the sink again must not fail on the existing table.
	again, err := New(ctx, Options{Addr: addr, Table: "bot_history"})
	require.NoError(t, err)
	_ = again.Close()
}
