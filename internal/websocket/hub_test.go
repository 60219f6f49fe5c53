package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, token string) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(logging.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	e := echo.New()
	e.GET("/ws/ingest/status", NewHandler(hub, token).HandleIngestWebSocket)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return hub, server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/ingest/status"
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	_, server := newTestServer(t, "secret")

	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL(server), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_BroadcastsIngestionEvents(t *testing.T) {
	hub, server := newTestServer(t, "secret")

	header := http.Header{"Authorization": []string{"Bearer secret"}}
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL(server), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastIngestion(IngestionEvent{
		RequestID:  "req-1",
		Source:     "http",
		LogType:    "TestTable",
		Records:    2,
		StatusCode: 200,
		Success:    true,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event IngestionEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, MessageTypeIngestionResult, event.Type)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "TestTable", event.LogType)
	assert.Equal(t, 2, event.Records)
	assert.True(t, event.Success)
	assert.False(t, event.Timestamp.IsZero())
}

func TestHub_PublishDoesNotBlockWithoutRunner(t *testing.T) {
	hub := NewHub(logging.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastSpoolFile(SpoolFileEvent{LogType: "TestTable", File: "a.json", Outcome: "done"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
}
