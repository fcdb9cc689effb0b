package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	curvenotes "curve-analyzer"
	"curve-analyzer/curvelog"
	"curve-analyzer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pressLog = `[General]
Device=Press 4
[Recorded curves]
[Record 1]
1;0.000;10.000;T#4m17s47ms
2;0.500;11.000;T#4m17s147ms
3;1.500;12.000;T#4m17s247ms
4;2.500;13.000;T#4m17s347ms
5;3.500;14.000;T#4m17s447ms
6;4.500;15.000;T#4m17s547ms
[Record 2]
1;0.000;5.000;T#1s0ms
2;0.100;5.500;T#bad
[Variables]
Speed=3
`

func testServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimitRPS = 0
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	s := testServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(""))
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := do(t, s, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", decodeError(t, rec).RequestID)
}

func TestParseRawBody(t *testing.T) {
	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(pressLog))
	req.Header.Set("Content-Type", "text/plain")
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var parsed curvelog.ParseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Len(t, parsed.Records, 2)
	assert.True(t, parsed.SectionFound)
	assert.Equal(t, "[Record 1]", parsed.Records[0].Header)
	assert.Len(t, parsed.Records[0].Samples, 6)
	assert.Equal(t, "T#bad", parsed.Records[1].Samples[1].TimeRaw)
}

func TestParseMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "press.log")
	require.NoError(t, err)
	_, err = part.Write([]byte(pressLog))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a curvenotes.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "press.log", a.FileName)
}

func TestMultipartWithoutFileField(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(t, s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).ErrorCode)
}

func TestAnalyzeReturnsEnrichedRecords(t *testing.T) {
	s := testServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?window=3&name=press.log", strings.NewReader(pressLog))
	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a curvenotes.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "press.log", a.FileName)
	assert.Equal(t, 3, a.SmoothingWindow)
	require.Len(t, a.Enriched, 2)

	first := a.Enriched[0]
	assert.True(t, first.Smoothed)
	require.NotNil(t, first.AvgSamplingIntervalMS)
	assert.InDelta(t, 100, *first.AvgSamplingIntervalMS, 1e-9)
	require.NotNil(t, first.Samples[1].Velocity)
	assert.InDelta(t, 5, *first.Samples[1].Velocity, 1e-9)
	require.NotNil(t, first.Samples[5].VelocityMA)
	assert.InDelta(t, 10, *first.Samples[5].VelocityMA, 1e-9)

	assert.Equal(t, 1, a.DiagnosticCounts[curvelog.KindDurationDecode])
	assert.NotEmpty(t, a.Notes)
}

func TestAnalyzeRejectsBadWindow(t *testing.T) {
	s := testServer(t, nil)
	for _, q := range []string{"0", "1001", "five"} {
		t.Run(q, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?window="+q, strings.NewReader(pressLog))
			rec := do(t, s, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "INVALID_PARAMETER", body.ErrorCode)
			assert.Contains(t, rec.Body.String(), `"field":"window"`)
		})
	}
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		limit  int64
		status int
		code   string
	}{
		{"empty", nil, 0, http.StatusBadRequest, "EMPTY_INPUT"},
		{"not text", []byte{0xff, 0xfe, 0x00}, 0, http.StatusUnsupportedMediaType, "NOT_TEXT"},
		{"too large", []byte(pressLog), 16, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testServer(t, func(c *config.Config) {
				if tt.limit > 0 {
					c.Server.MaxUploadBytes = tt.limit
				}
			})
			for _, path := range []string{"/api/v1/parse", "/api/v1/analyze"} {
				rec := do(t, s, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(tt.body)))
				assert.Equal(t, tt.status, rec.Code, path)
				assert.Equal(t, tt.code, decodeError(t, rec).ErrorCode, path)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	s := testServer(t, func(c *config.Config) {
		c.Server.RateLimitRPS = 0.001
		c.Server.RateLimitBurst = 1
	})

	first := do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(pressLog)))
	assert.Equal(t, http.StatusOK, first.Code)

	second := do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader(pressLog)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, second).ErrorCode)

	health := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestMetricsExposition(t *testing.T) {
	s := testServer(t, nil)
	do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(pressLog)))
	do(t, s, httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader("")))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "curvelog_records_parsed_total 2")
	assert.Contains(t, body, `curvelog_diagnostics_total{kind="duration_decode"} 1`)
	assert.Contains(t, body, `curvelog_requests_total{route="/api/v1/analyze",status="200"} 1`)
	assert.Contains(t, body, `curvelog_requests_total{route="/api/v1/parse",status="400"} 1`)
	assert.Contains(t, body, "curvelog_parse_duration_seconds_count 1")
}
