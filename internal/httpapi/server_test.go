package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/config"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/optimizer"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.HTTPConfig{Listen: ":0", RateLimit: 100, RateBurst: 100}
	return NewServer(cfg, optimizer.New(optimizer.DefaultOptions(t.TempDir())))
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.httpSrv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_WeightsExport(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/v1/weights", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2.5, body["effective_weights"]["options_flow"])
}

func TestServer_ConvictionEndpoint(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/v1/conviction", map[string]any{
		"regime":    "neutral",
		"threshold": 2.5,
		"readings": []map[string]any{
			{"component": "options_flow", "magnitude": 0.8, "polarity": 1, "confidence": 1.0},
			{"component": "dark_pool", "magnitude": 0.5, "polarity": 1, "confidence": 1.0},
			{"component": "institutional", "magnitude": 0.2, "polarity": -1, "confidence": 1.0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Decision struct {
			Approved  bool   `json:"approved"`
			Direction string `json:"direction"`
		} `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Decision.Approved)
	assert.Equal(t, "LONG", body.Decision.Direction)
}

func TestServer_RecordTradeValidation(t *testing.T) {
	s := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/trades", map[string]any{"symbol": "TEST"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing trade_id rejected")

	rec = doJSON(t, s, http.MethodPost, "/v1/trades", map[string]any{
		"trade_id": "t1", "symbol": "TEST", "pnl": 2.0, "status": "closed",
		"context": map[string]any{"components": map[string]any{"flow": 0.8}},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := config.HTTPConfig{Listen: ":0", RateLimit: 1, RateBurst: 1}
	s := NewServer(cfg, optimizer.New(optimizer.DefaultOptions(t.TempDir())))

	first := doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestServer_WhyEndpoint(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/v1/why/options_flow?q=why+does+it+win", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "found")
}
