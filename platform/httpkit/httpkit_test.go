package httpkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carma_backend/platform/apperr"
	"carma_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleErrorUnavailableSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	err := apperr.Unavailable("listing store unavailable", context.DeadlineExceeded).WithCode(apperr.CodeUpstreamUnavailable)
	if !HandleError(c, err) {
		t.Fatalf("expected error to be handled")
	}

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != apperr.CodeUpstreamUnavailable || !body.Retryable {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestHandleErrorUntypedIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	HandleError(c, errors.New("pq: something leaked"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" || strings.Contains(body, "leaked") {
		t.Fatalf("expected sanitized body, got %q", body)
	}
	if !strings.Contains(rec.Body.String(), apperr.CodeInternal) {
		t.Fatalf("expected %s code, got %q", apperr.CodeInternal, rec.Body.String())
	}
}

func TestRequestLoggerRecordsServerErrors(t *testing.T) {
	var buf bytes.Buffer
	engine := gin.New()
	engine.Use(RequestLogger(logger.NewWithWriter("production", &buf)))
	engine.GET("/boom", func(c *gin.Context) {
		HandleError(c, errors.New("pool exhausted"))
	})
	engine.GET("/missing", func(c *gin.Context) {
		HandleError(c, apperr.NotFound("listing not found").WithCode(apperr.CodeTargetNotFound))
	})

	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "http_error" || record["error"] != "pool exhausted" {
		t.Fatalf("expected http_error record with cause, got %v", record)
	}

	buf.Reset()
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(buf.String(), `"msg":"http_request"`) {
		t.Fatalf("expected client errors to log as plain requests, got %q", buf.String())
	}
}

func TestRequestIDEchoesInboundHeader(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/ping", func(c *gin.Context) {
		id, _ := c.Get(ContextRequestIDKey)
		c.String(http.StatusOK, id.(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Body.String() != "abc-123" || rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("expected request id to be echoed, got body=%q header=%q", rec.Body.String(), rec.Header().Get(HeaderRequestID))
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1, logger.Discard())
	engine := gin.New()
	engine.Use(limiter.RateLimit())
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 429], got %v", codes)
	}
}
