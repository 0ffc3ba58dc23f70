package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticBackend struct {
	err     error
	domains int
}

func (s staticBackend) Ping(context.Context) error        { return s.err }
func (s staticBackend) DomainCount(context.Context) int { return s.domains }

func run(t *testing.T, h gin.HandlerFunc) map[string]any {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	body["_code"] = float64(w.Code)
	return body
}

func TestHealthCheck(t *testing.T) {
	body := run(t, NewHealthHandler(nil).HealthCheck)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "lexigraph", body["service"])
	assert.Contains(t, body, "timestamp")
	assert.Contains(t, body, "version")
}

func TestLivenessCheck(t *testing.T) {
	body := run(t, NewHealthHandler(nil).LivenessCheck)
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessCheck(t *testing.T) {
	body := run(t, NewHealthHandler(staticBackend{domains: 2}).ReadinessCheck)
	assert.Equal(t, float64(http.StatusOK), body["_code"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, float64(2), checks["registry"].(map[string]any)["domains"])

	body = run(t, NewHealthHandler(nil).ReadinessCheck)
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["_code"])
	assert.Equal(t, "not_ready", body["status"])
}

func TestReadinessCheckReportsFailures(t *testing.T) {
	body := run(t, NewHealthHandler(staticBackend{err: errors.New("neo4j unreachable"), domains: 1}).ReadinessCheck)
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["_code"])
	db := body["checks"].(map[string]any)["database"].(map[string]any)
	assert.Equal(t, "unhealthy", db["status"])
	assert.Equal(t, "neo4j unreachable", db["error"])

	body = run(t, NewHealthHandler(staticBackend{}).ReadinessCheck)
	reg := body["checks"].(map[string]any)["registry"].(map[string]any)
	assert.Equal(t, "unhealthy", reg["status"])
	assert.Equal(t, float64(0), reg["domains"])
}
