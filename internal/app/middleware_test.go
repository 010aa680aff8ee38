package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	WithRequestLogging(next, log).ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status=%d want=%d", rec.Code, http.StatusTeapot)
	}

	var entry struct {
		Msg    string `json:"msg"`
		Method string `json:"method"`
		Path   string `json:"path"`
		Status int    `json:"status"`
		Bytes  int64  `json:"bytes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry.Msg != "http.request" || entry.Method != "GET" || entry.Path != "/auth/me" {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.Status != http.StatusTeapot {
		t.Fatalf("logged status=%d want=%d", entry.Status, http.StatusTeapot)
	}
	if entry.Bytes != int64(len("short and stout")) {
		t.Fatalf("logged bytes=%d", entry.Bytes)
	}
}

func TestLoggingResponseWriterDefaultsToOK(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("implicit 200"))
	})

	rec := httptest.NewRecorder()
	WithRequestLogging(next, log).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry.Status != http.StatusOK {
		t.Fatalf("logged status=%d want=200", entry.Status)
	}
}
