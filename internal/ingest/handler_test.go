package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEcho(poster Poster) *echo.Echo {
	svc := NewService(poster, nil, nil, logging.NewNop())
	e := echo.New()
	e.Use(logging.RequestLoggingMiddleware(logging.NewNop()))
	e.POST("/api/logs/:logType", NewHandler(svc).PostLogs)
	return e
}

func doPost(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestPostLogs_Accepted(t *testing.T) {
	poster := &fakePoster{bytes: 9}
	rec := doPost(newTestEcho(poster), "/api/logs/TestTable", `[{"a":1}]`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "TestTable", body["log_type"])
	assert.Equal(t, float64(1), body["records"])
	assert.Equal(t, float64(200), body["status_code"])
	assert.Equal(t, rec.Header().Get(logging.RequestIDHeader), body["request_id"])
	assert.Equal(t, 1, poster.callCount())
}

func TestPostLogs_InvalidLogType(t *testing.T) {
	poster := &fakePoster{}
	rec := doPost(newTestEcho(poster), "/api/logs/bad-name", `[{"a":1}]`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "invalid log type")
	assert.Zero(t, poster.callCount())
}

func TestPostLogs_InvalidBody(t *testing.T) {
	poster := &fakePoster{}
	e := newTestEcho(poster)

	for _, body := range []string{"", "[]", "{", `[1,2]`} {
		rec := doPost(e, "/api/logs/TestTable", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Zero(t, poster.callCount())
}

func TestPostLogs_PayloadTooLarge(t *testing.T) {
	poster := &fakePoster{}
	body := `[{"a":"` + strings.Repeat("x", MaxBodyBytes) + `"}]`
	rec := doPost(newTestEcho(poster), "/api/logs/TestTable", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, poster.callCount())
}

func TestPostLogs_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", &datacollector.IngestionError{StatusCode: 403, Code: "InvalidAuthorization", Body: `{"Error":"InvalidAuthorization"}`}, http.StatusForbidden},
		{"throttled", &datacollector.IngestionError{StatusCode: 429, Body: "slow down"}, http.StatusTooManyRequests},
		{"unexpected redirect", &datacollector.IngestionError{StatusCode: 302}, http.StatusBadGateway},
		{"timeout", &datacollector.TransportError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"transport", &datacollector.TransportError{Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
		{"serialization", &datacollector.SerializationError{Err: errors.New("bad value")}, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doPost(newTestEcho(&fakePoster{err: tt.err}), "/api/logs/TestTable", `{"a":1}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestPostLogs_UpstreamDetails(t *testing.T) {
	upstream := &datacollector.IngestionError{StatusCode: 403, Code: "InvalidAuthorization", Message: "signature mismatch", Body: `{"Error":"InvalidAuthorization","Message":"signature mismatch"}`}
	rec := doPost(newTestEcho(&fakePoster{err: upstream}), "/api/logs/TestTable", `{"a":1}`)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(403), body["upstream_status"])
	assert.Equal(t, "InvalidAuthorization", body["upstream_code"])
	assert.Equal(t, upstream.Body, body["upstream_body"])
}

func TestPostLogs_RelaysToDataCollector(t *testing.T) {
	var (
		gotAuth    string
		gotLogType string
		gotBody    string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(datacollector.HeaderAuthorization)
		gotLogType = r.Header.Get(datacollector.HeaderLogType)
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	client, err := datacollector.NewClient("customer_id", "c2hhcmVkX2tleQ==",
		datacollector.WithConfig(datacollector.DefaultConfig().WithEndpoint(upstream.URL)))
	require.NoError(t, err)

	rec := doPost(newTestEcho(client), "/api/logs/TestTable", `[{"id":12345678901234567890}]`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, strings.HasPrefix(gotAuth, "SharedKey customer_id:"))
	assert.Equal(t, "TestTable", gotLogType)
	assert.Equal(t, `[{"id":12345678901234567890}]`, gotBody)
	assert.Equal(t, float64(len(gotBody)), decodeBody(t, rec)["bytes"])
}
