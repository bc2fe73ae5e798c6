package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"legal-ease-backend/internal/shared/telemetry"
	"legal-ease-backend/internal/shared/util"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Identity(false), Logging())
	router.GET("/test", func(c *gin.Context) {
		SetOutcome(c, "qa_answered")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(SessionHeader, "session-0001")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatalf("expected log output")
	}
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "owner_hash", "route", "duration_ms", "status", "outcome"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["owner_hash"] != util.HashUserKey("web:session-0001") {
		t.Fatalf("unexpected owner_hash: %v", payload["owner_hash"])
	}
	if payload["outcome"] != "qa_answered" {
		t.Fatalf("unexpected outcome: %v", payload["outcome"])
	}
	if strings.Contains(last, "session-0001") {
		t.Fatalf("raw session id leaked into log line: %s", last)
	}
}
