package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tech-arch1tect/datacollector-agent/internal/audit"
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postCall struct {
	logType string
	records []datacollector.Record
}

type fakePoster struct {
	mu         sync.Mutex
	calls      []postCall
	statusCode int
	bytes      int64
	err        error
}

func (f *fakePoster) PostData(ctx context.Context, records []datacollector.Record, logType string) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, postCall{logType: logType, records: records})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	status := f.statusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    &http.Request{ContentLength: f.bytes},
	}, nil
}

func (f *fakePoster) WorkspaceID() string {
	return "customer_id"
}

func (f *fakePoster) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []websocket.IngestionEvent
}

func (f *fakeBroadcaster) BroadcastIngestion(event websocket.IngestionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBroadcaster) last() websocket.IngestionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func newTestService(t *testing.T, poster *fakePoster) (*Service, *fakeBroadcaster, string) {
	t.Helper()

	auditPath := filepath.Join(t.TempDir(), "ingest.jsonl")
	auditService, err := audit.NewService(true, auditPath, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditService.Close() })

	broadcaster := &fakeBroadcaster{}
	return NewService(poster, auditService, broadcaster, logging.NewNop()), broadcaster, auditService.CurrentFilePath()
}

func readAuditEvents(t *testing.T, path string) []audit.AuditEvent {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []audit.AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event audit.AuditEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestService_IngestSuccess(t *testing.T) {
	poster := &fakePoster{bytes: 27}
	svc, broadcaster, auditPath := newTestService(t, poster)

	result, err := svc.Ingest(context.Background(), Request{
		RequestID: "req-1",
		Source:    SourceHTTP,
		LogType:   "TestTable",
		Records:   []datacollector.Record{{"a": 1}, {"b": 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, &Result{
		RequestID:  "req-1",
		LogType:    "TestTable",
		Records:    2,
		Bytes:      27,
		StatusCode: http.StatusOK,
	}, result)
	require.Equal(t, 1, poster.callCount())
	assert.Equal(t, "TestTable", poster.calls[0].logType)

	event := broadcaster.last()
	assert.True(t, event.Success)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, 2, event.Records)

	events := readAuditEvents(t, auditPath)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventIngestAccepted, events[0].EventType)
	assert.Equal(t, "customer_id", events[0].WorkspaceID)
	assert.Equal(t, 27, events[0].Bytes)
	assert.True(t, events[0].Success)
}

func TestService_IngestAssignsRequestID(t *testing.T) {
	svc, _, _ := newTestService(t, &fakePoster{})

	result, err := svc.Ingest(context.Background(), Request{Source: SourceCLI, LogType: "T", Records: []datacollector.Record{{"a": 1}}})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RequestID)
}

func TestService_IngestRejected(t *testing.T) {
	rejected := &datacollector.IngestionError{StatusCode: 403, Code: "InvalidAuthorization", Message: "bad signature"}
	poster := &fakePoster{err: rejected}
	svc, broadcaster, auditPath := newTestService(t, poster)

	result, err := svc.Ingest(context.Background(), Request{Source: SourceHTTP, LogType: "T", Records: []datacollector.Record{{"a": 1}}})
	assert.Nil(t, result)
	assert.Same(t, rejected, err)
	assert.True(t, datacollector.IsStatus(err, 403))
	assert.Equal(t, 1, poster.callCount())

	event := broadcaster.last()
	assert.False(t, event.Success)
	assert.Equal(t, 403, event.StatusCode)
	assert.Contains(t, event.Error, "InvalidAuthorization")

	events := readAuditEvents(t, auditPath)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventIngestRejected, events[0].EventType)
	assert.Equal(t, 403, events[0].StatusCode)
	assert.Equal(t, "InvalidAuthorization", events[0].UpstreamCode)
	assert.False(t, events[0].Success)
}

func TestService_IngestClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		eventType string
	}{
		{"transport", &datacollector.TransportError{Err: errors.New("connection refused")}, audit.EventIngestTransportFailed},
		{"serialization", &datacollector.SerializationError{Err: errors.New("unsupported type")}, audit.EventIngestSerializationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, auditPath := newTestService(t, &fakePoster{err: tt.err})

			_, err := svc.Ingest(context.Background(), Request{Source: SourceSpool, LogType: "T"})
			assert.ErrorIs(t, err, tt.err)

			events := readAuditEvents(t, auditPath)
			require.Len(t, events, 1)
			assert.Equal(t, tt.eventType, events[0].EventType)
		})
	}
}

func TestService_IngestPayloadDecodeFailure(t *testing.T) {
	poster := &fakePoster{}
	svc, broadcaster, auditPath := newTestService(t, poster)

	_, err := svc.IngestPayload(context.Background(), Request{Source: SourceSpool, LogType: "T", FilePath: "/spool/T/a.json"}, []byte("not json"), FormatJSON)
	require.Error(t, err)

	assert.Zero(t, poster.callCount())
	assert.Empty(t, broadcaster.events)

	events := readAuditEvents(t, auditPath)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventIngestDecodeFailed, events[0].EventType)
	assert.Equal(t, "/spool/T/a.json", events[0].FilePath)
	assert.NotEmpty(t, events[0].RequestID)
}

func TestService_IngestPayloadYAML(t *testing.T) {
	poster := &fakePoster{}
	svc, _, _ := newTestService(t, poster)

	result, err := svc.IngestPayload(context.Background(), Request{Source: SourceCLI, LogType: "T"}, []byte("- a: 1\n- a: 2\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	require.Equal(t, 1, poster.callCount())
	assert.Len(t, poster.calls[0].records, 2)
}
