package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crucial707/irrigation/internal/config"
	"github.com/crucial707/irrigation/internal/repo"
)

func testConfig() config.Config {
	return config.Config{
		CORSAllowedOrigins: []string{"*"},
		WriteRatePerMinute: 6000,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newRouter(repo.NewMemoryIrrigationRepo(), testConfig(), nil))
	t.Cleanup(srv.Close)
	return srv
}

func postIrrigation(t *testing.T, srv *httptest.Server, body string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/irrigation", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST /irrigation: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func listIrrigation(t *testing.T, srv *httptest.Server) map[string]map[string]interface{} {
	t.Helper()
	resp, err := http.Get(srv.URL + "/irrigation")
	if err != nil {
		t.Fatalf("GET /irrigation: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /irrigation status: got %d, want 200", resp.StatusCode)
	}
	var out map[string]map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

// TestAPI_CreateThenList runs the documented round trip: POST a record, then find it
// in the full listing with the submitted fields and a createdAt no earlier than the request.
func TestAPI_CreateThenList(t *testing.T) {
	srv := newTestServer(t)
	before := time.Now().UnixMilli()

	status, created := postIrrigation(t, srv, `{"time":"18:00","days":[],"specificDates":["2025-07-09"],"duration":30}`)
	if status != http.StatusCreated {
		t.Fatalf("POST status: got %d, want 201 (%v)", status, created)
	}
	id, _ := created["id"].(string)
	if created["ok"] != true || id == "" {
		t.Fatalf("unexpected create response: %v", created)
	}

	list := listIrrigation(t, srv)
	rec, ok := list[id]
	if !ok {
		t.Fatalf("id %q not in listing %v", id, list)
	}
	if rec["time"] != "18:00" || rec["duration"].(float64) != 30 {
		t.Errorf("unexpected record: %v", rec)
	}
	dates, _ := rec["specificDates"].([]interface{})
	if len(dates) != 1 || dates[0] != "2025-07-09" {
		t.Errorf("specificDates: got %v", rec["specificDates"])
	}
	if days, ok := rec["days"].([]interface{}); !ok || len(days) != 0 {
		t.Errorf("days: got %#v, want []", rec["days"])
	}
	createdAt, ok := rec["createdAt"].(float64)
	if !ok || int64(createdAt) < before {
		t.Errorf("createdAt: got %v, want >= %d", rec["createdAt"], before)
	}
}

func TestAPI_ListEmpty(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/irrigation")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(bytes.TrimSpace(body)) != "{}" {
		t.Errorf("GET /irrigation on empty store: got %d %s, want 200 {}", resp.StatusCode, body)
	}
}

func TestAPI_ConcurrentIdenticalPostsYieldDistinctIDs(t *testing.T) {
	srv := newTestServer(t)
	body := `{"time":"18:00","days":[],"specificDates":["2025-07-09"],"duration":30}`

	ids := make([]string, 2)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/irrigation", "application/json", bytes.NewReader([]byte(body)))
			if err != nil {
				t.Errorf("POST: %v", err)
				return
			}
			defer resp.Body.Close()
			var out struct {
				ID string `json:"id"`
			}
			json.NewDecoder(resp.Body).Decode(&out)
			ids[i] = out.ID
		}(i)
	}
	wg.Wait()

	if ids[0] == "" || ids[1] == "" || ids[0] == ids[1] {
		t.Fatalf("expected two distinct ids, got %q and %q", ids[0], ids[1])
	}
	list := listIrrigation(t, srv)
	for _, id := range ids {
		if _, ok := list[id]; !ok {
			t.Errorf("id %q not retrievable", id)
		}
	}
}

func TestAPI_ValidationRejected(t *testing.T) {
	srv := newTestServer(t)
	status, out := postIrrigation(t, srv, `{"time":"","specificDates":["2025-07-09"],"duration":0}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", status)
	}
	fields, _ := out["fields"].(map[string]interface{})
	if _, ok := fields["times"]; !ok {
		t.Errorf("missing times error: %v", out)
	}
	if _, ok := fields["duration"]; !ok {
		t.Errorf("missing duration error: %v", out)
	}
}

func TestAPI_BodyOverLimitRejected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 1024
	srv := httptest.NewServer(newRouter(repo.NewMemoryIrrigationRepo(), cfg, nil))
	t.Cleanup(srv.Close)

	body := `{"times":["18:00"],"specificDates":["2025-07-09"],"duration":30,"days":["` + strings.Repeat("x", 2048) + `"]}`
	status, out := postIrrigation(t, srv, body)
	if status != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413 (%v)", status, out)
	}
	if len(listIrrigation(t, srv)) != 0 {
		t.Error("oversized body must not be stored")
	}
}

func TestAPI_DurationUpperBound(t *testing.T) {
	srv := newTestServer(t)
	status, out := postIrrigation(t, srv, `{"times":["18:00"],"specificDates":["2025-07-09"],"duration":9223372036854775807}`)
	if status != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400 (%v)", status, out)
	}
}

func TestAPI_UpdateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	_, created := postIrrigation(t, srv, `{"time":"18:00","specificDates":["2025-07-09"],"duration":30}`)
	id := created["id"].(string)

	req, _ := http.NewRequest("PUT", srv.URL+"/irrigation/"+id, bytes.NewReader([]byte(`{"times":["07:00"],"days":["Mon","Thu"],"duration":"10","status":"Pending"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status: got %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/irrigation/" + id)
	if err != nil {
		t.Fatalf("GET one: %v", err)
	}
	var rec map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&rec)
	resp.Body.Close()
	if rec["time"] != "07:00" || rec["duration"].(float64) != 10 {
		t.Errorf("updated record: %v", rec)
	}

	req, _ = http.NewRequest("DELETE", srv.URL+"/irrigation/"+id, nil)
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status: got %d, want 204", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/irrigation/" + id)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete: got %d, want 404", resp.StatusCode)
	}
}

func TestAPI_CORSOpenToAllOrigins(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest("OPTIONS", srv.URL+"/irrigation", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status: got %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q, want *", got)
	}
}

func TestAPI_WriteRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.WriteRatePerMinute = 1
	srv := httptest.NewServer(newRouter(repo.NewMemoryIrrigationRepo(), cfg, nil))
	defer srv.Close()

	body := `{"time":"18:00","specificDates":["2025-07-09"],"duration":30}`
	limited := false
	for i := 0; i < 10; i++ {
		status, _ := postIrrigation(t, srv, body)
		if status == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected 429 after exceeding the write rate")
	}
	// Reads are never limited.
	listIrrigation(t, srv)
}

func TestAPI_HealthReadyMetrics(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: got %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, _, err := openStore(context.Background(), config.Config{StoreDriver: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
