package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_DoesNotExposeKey(t *testing.T) {
	client, err := datacollector.NewClient("customer_id", "c2hhcmVkX2tleQ==")
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, NewHandler(client).Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "c2hhcmVkX2tleQ==")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "customer_id", body["workspace_id"])
	assert.Equal(t, client.URL(), body["endpoint"])
}
