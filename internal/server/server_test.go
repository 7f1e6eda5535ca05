package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitesense/sitesense/internal/orchestrator"
	"github.com/sitesense/sitesense/internal/server"
	"github.com/sitesense/sitesense/internal/testutil"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	cfg := server.Config{
		ListenAddr:  ":0",
		StorageRoot: t.TempDir(),
		Logger:      &testutil.DummyLogger{},
		Adapters: &orchestrator.Adapters{
			Crawler:       &testutil.StubCrawler{},
			Performance:   &testutil.StubPerformance{},
			Accessibility: &testutil.StubAccessibility{},
			Security:      &testutil.StubSecurity{},
		},
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func startScan(t *testing.T, s *server.Server, url string) int64 {
	t.Helper()
	rec := doJSON(t, s, "POST", "/scan", `{"url":"`+url+`"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp server.StartScanResponse
	decodeJSON(t, rec, &resp)
	if resp.ScanID < 1 {
		t.Fatalf("expected positive scan id, got %d", resp.ScanID)
	}
	if resp.Status != "scanning" {
		t.Fatalf("expected status scanning, got %q", resp.Status)
	}
	return resp.ScanID
}

func pollUntilTerminal(t *testing.T, s *server.Server, id int64) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, s, "GET", "/scan/"+jsonID(id), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var scan map[string]any
		decodeJSON(t, rec, &scan)
		if status := scan["status"]; status == "success" || status == "error" {
			return scan
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scan did not reach a terminal state in time")
	return nil
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scans", "")

	origin := rec.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_RequestIDEchoed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID header")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("expected client request id echoed, got %q", got)
	}
}

// ─── Health ────────────────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp server.HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
	if resp.Timestamp.IsZero() {
		t.Error("expected a timestamp in the health response")
	}
	if d := time.Since(resp.Timestamp); d < 0 || d > time.Minute {
		t.Errorf("health timestamp not current: %s ago", d)
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/swagger/doc.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var doc map[string]any
	decodeJSON(t, rec, &doc)
	if doc["swagger"] != "2.0" {
		t.Errorf("expected a swagger 2.0 document, got %v", doc["swagger"])
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/scan", "/scans", "/health"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("swagger document missing path %s", p)
		}
	}
}

// ─── Scans ─────────────────────────────────────────────────────────────

func TestServer_StartScan(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	id := startScan(t, s, "https://a.example")
	if id != 1 {
		t.Errorf("first scan should get id 1, got %d", id)
	}
}

func TestServer_StartScan_InvalidURL(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, body := range []string{
		`{"url":""}`,
		`{"url":"notaurl"}`,
		`{"url":"ftp://a.example"}`,
		`{"url":"https://"}`,
	} {
		rec := doJSON(t, s, "POST", "/scan", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestServer_StartScan_InvalidJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/scan", `{"url":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_ScanLifecycle(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	id := startScan(t, s, "https://a.example")
	scan := pollUntilTerminal(t, s, id)

	if scan["status"] != "success" {
		t.Fatalf("expected success, got %v (%v)", scan["status"], scan["error"])
	}
	if scan["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", scan["progress"])
	}
	results, ok := scan["results"].(map[string]any)
	if !ok {
		t.Fatalf("expected results object, got %v", scan["results"])
	}
	overall, ok := results["overall"].(float64)
	if !ok || overall < 0 || overall > 100 {
		t.Errorf("expected overall score in [0,100], got %v", results["overall"])
	}

	// Reads are idempotent.
	again := pollUntilTerminal(t, s, id)
	if again["status"] != "success" {
		t.Errorf("second read must match, got %v", again["status"])
	}
}

func TestServer_GetScan_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scan/999", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_GetScan_BadID(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scan/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_ListScans(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	first := startScan(t, s, "https://a.example")
	second := startScan(t, s, "https://b.example")
	pollUntilTerminal(t, s, first)
	pollUntilTerminal(t, s, second)

	rec := doJSON(t, s, "GET", "/scans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var scans []map[string]any
	decodeJSON(t, rec, &scans)
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}
	// Newest first.
	if scans[0]["id"] != float64(second) || scans[1]["id"] != float64(first) {
		t.Errorf("expected newest first, got %v then %v", scans[0]["id"], scans[1]["id"])
	}
	// Listings carry scores only, not full reports.
	results, ok := scans[0]["results"].(map[string]any)
	if !ok {
		t.Fatalf("expected score summary, got %v", scans[0]["results"])
	}
	if _, hasFull := results["summary"]; hasFull {
		t.Error("listing must not include the full report")
	}
}

// ─── Compare ───────────────────────────────────────────────────────────

func TestServer_CompareScans(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	a := startScan(t, s, "https://a.example")
	b := startScan(t, s, "https://b.example")
	pollUntilTerminal(t, s, a)
	pollUntilTerminal(t, s, b)

	rec := doJSON(t, s, "GET", "/scan/"+jsonID(a)+"/compare/"+jsonID(b), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var diff map[string]any
	decodeJSON(t, rec, &diff)
	if diff["base_id"] != float64(a) || diff["head_id"] != float64(b) {
		t.Errorf("unexpected diff ids: %v", diff)
	}
}

func TestServer_CompareScans_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/scan/1/compare/2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_ScanWebSocket(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	ts := httptest.NewServer(s)
	defer ts.Close()

	id := startScan(t, s, "https://a.example")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scan/" + jsonID(id)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// First frame is the current record; the stream ends with the final
	// record once the scan is terminal.
	var messages []map[string]any
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		messages = append(messages, msg)
	}

	if len(messages) == 0 {
		t.Fatal("expected at least one websocket message")
	}
	last := messages[len(messages)-1]
	if last["status"] != "success" {
		t.Errorf("expected final frame with success status, got %v", last)
	}
}

func TestServer_ScanWebSocket_UnknownScan(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/ws/scan/999", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
