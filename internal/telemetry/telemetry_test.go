package telemetry

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	require.NoError(t, err)
	go srv.Start()
	require.True(t, srv.ReadyForConnections(2*time.Second))
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestEmit_PublishesToNATSWhenConnected(t *testing.T) {
	srv := startTestNATS(t)
	emitter := Connect(srv.ClientURL(), zerolog.Nop())
	defer emitter.Close()

	conn, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan *nats.Msg, 1)
	sub, err := conn.Subscribe("engine.events.CycleSummary", func(m *nats.Msg) { received <- m })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	conn.Flush()

	emitter.Emit(KindCycleSummary, "", map[string]int{"candidates": 5})

	select {
	case msg := <-received:
		require.Contains(t, string(msg.Data), "CycleSummary")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for NATS message")
	}
}

func TestConnect_DegradesGracefullyWhenUnreachable(t *testing.T) {
	emitter := Connect("nats://127.0.0.1:1", zerolog.Nop())
	require.Nil(t, emitter.conn)
	// Emit must not panic even with no live connection.
	emitter.Emit(KindDataAbsent, "BTC/USDT", nil)
}
