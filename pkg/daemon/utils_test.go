package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newLoggedRouter() (*gin.Engine, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ginLogger(logger))
	return r, hook
}

func TestGinLoggerRequestFields(t *testing.T) {
	r, hook := newLoggedRouter()
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Level != logrus.DebugLevel {
		t.Errorf("level = %s, want debug for a 200", e.Level)
	}
	if e.Data["method"] != "GET" || e.Data["path"] != "/ping" {
		t.Errorf("unexpected request fields: %+v", e.Data)
	}
	if e.Data["status"] != http.StatusOK {
		t.Errorf("status field = %v, want 200", e.Data["status"])
	}
	if e.Data["bytes"] != len("pong") {
		t.Errorf("bytes field = %v, want %d", e.Data["bytes"], len("pong"))
	}
}

func TestGinLoggerSeverityByStatus(t *testing.T) {
	r, hook := newLoggedRouter()
	r.GET("/missing", func(c *gin.Context) {
		c.String(http.StatusNotFound, "nope")
	})
	r.GET("/broken", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))
	r.ServeHTTP(w, httptest.NewRequest("GET", "/broken", nil))

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.WarnLevel {
		t.Errorf("4xx level = %s, want warning", entries[0].Level)
	}
	if entries[1].Level != logrus.ErrorLevel {
		t.Errorf("5xx level = %s, want error", entries[1].Level)
	}
}
