package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"
)

// quietRun points run() at a temp database and silences telemetry output.
func quietRun(t *testing.T, dbPath, port string) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("PORT", port)
	t.Setenv("OTEL_EXPORTER", "none")
	t.Setenv("OTEL_ENVIRONMENT", "test")
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
}

func get(t *testing.T, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	return http.DefaultClient.Do(req)
}

// TestRun exercises the real run() function end-to-end: OTel, River, HTTP
// server, a transition through the outbox, and graceful shutdown.
func TestRun(t *testing.T) {
	quietRun(t, t.TempDir()+"/test-run.db", "19876")

	errCh := make(chan error, 1)
	go func() { errCh <- run() }()

	serverURL := "http://localhost:19876/api/v1/tenants/mc-1"
	ready := false
	for range 50 {
		resp, reqErr := get(t, serverURL+"/entities")
		if reqErr == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ready {
		t.Fatal("server did not start within 5 seconds")
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, serverURL+"/entities",
		strings.NewReader(`{"type":"affiliate"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /entities failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = get(t, serverURL+"/stats/affiliate")
	if err != nil {
		t.Fatalf("GET /stats failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Send SIGINT to trigger graceful shutdown.
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("finding process: %v", err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("sending SIGINT: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not exit within 10 seconds")
	}
}

// TestRun_InvalidDB verifies run() returns an error for an invalid database path.
func TestRun_InvalidDB(t *testing.T) {
	quietRun(t, "/nonexistent/path/db.sqlite", "19877")

	if err := run(); err == nil {
		t.Fatal("expected error for invalid database path, got nil")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	quietRun(t, t.TempDir()+"/cfg.db", "19878")
	t.Setenv("RIVER_WORKERS", "-1")

	if err := run(); err == nil {
		t.Fatal("expected error for invalid RIVER_WORKERS, got nil")
	}
}
