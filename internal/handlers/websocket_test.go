package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/deepscan/internal/common"
	"github.com/ternarybob/deepscan/internal/interfaces"
	"github.com/ternarybob/deepscan/internal/models"
	"github.com/ternarybob/deepscan/internal/services/events"
)

type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg wsEnvelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readJobEvent(t *testing.T, conn *websocket.Conn) models.JobEvent {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, WSTypeJobState, msg.Type)
	var event models.JobEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	return event
}

func waitForClients(t *testing.T, h *WebSocketHandler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n }, 3*time.Second, 5*time.Millisecond)
}

func publishJob(t *testing.T, bus interfaces.EventService, job models.Job) {
	t.Helper()
	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobStateChanged,
		Payload: models.JobEvent{Generation: 1, Job: job},
	}))
}

func TestWebSocket_SendsSnapshotOnConnect(t *testing.T) {
	bus := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(bus, arbor.NewLogger(), &common.WebSocketConfig{})
	publishJob(t, bus, models.Job{ID: "job-1", State: models.JobStateProcessing, Progress: 40})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dial(t, server)

	hello := readMessage(t, conn)
	assert.Equal(t, WSTypeConnected, hello.Type)
	assert.Contains(t, string(hello.Payload), "server_instance_id")

	snapshot := readJobEvent(t, conn)
	assert.Equal(t, "job-1", snapshot.Job.ID)
	assert.Equal(t, models.JobStateProcessing, snapshot.Job.State)
	assert.Equal(t, 40, snapshot.Job.Progress)
}

func TestWebSocket_ThrottlesProgressButNotTransitions(t *testing.T) {
	bus := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(bus, arbor.NewLogger(), &common.WebSocketConfig{ProgressThrottle: "1h"})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conns := []*websocket.Conn{dial(t, server), dial(t, server)}
	waitForClients(t, handler, 2)
	for _, conn := range conns {
		readMessage(t, conn) // connected
		readJobEvent(t, conn) // idle snapshot
	}

	publishJob(t, bus, models.Job{ID: "job-1", State: models.JobStateProcessing, Progress: 10})
	publishJob(t, bus, models.Job{ID: "job-1", State: models.JobStateProcessing, Progress: 20}) // first progress-only passes the burst
	publishJob(t, bus, models.Job{ID: "job-1", State: models.JobStateProcessing, Progress: 30}) // throttled
	publishJob(t, bus, models.Job{ID: "job-1", State: models.JobStateCompleted, Progress: 100})

	for _, conn := range conns {
		assert.Equal(t, 10, readJobEvent(t, conn).Job.Progress)
		assert.Equal(t, 20, readJobEvent(t, conn).Job.Progress)
		last := readJobEvent(t, conn)
		assert.Equal(t, models.JobStateCompleted, last.Job.State)
	}
}

func TestWebSocket_ForwardsCancellationAndHealth(t *testing.T) {
	bus := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(bus, arbor.NewLogger(), nil)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dial(t, server)
	waitForClients(t, handler, 1)
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobCancelled,
		Payload: models.JobEvent{Job: models.Job{ID: "job-9", State: models.JobStateCancelled}},
	}))
	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventHealthChecked,
		Payload: models.HealthStatus{Status: "healthy", Healthy: true},
	}))

	cancelled := readMessage(t, conn)
	assert.Equal(t, WSTypeJobCancelled, cancelled.Type)
	assert.Contains(t, string(cancelled.Payload), "job-9")

	health := readMessage(t, conn)
	assert.Equal(t, WSTypeHealth, health.Type)
	assert.Contains(t, string(health.Payload), `"healthy":true`)
}
