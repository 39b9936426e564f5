package irrigation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crucial707/irrigation/internal/models"
	"github.com/crucial707/irrigation/internal/pushid"
)

func runCmd(t *testing.T, cmdArgs []string, handler http.HandlerFunc) (string, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("IRRIGATION_API_URL", srv.URL)

	var cmd = listCmd()
	switch cmdArgs[0] {
	case "create":
		cmd = createCmd()
	case "delete":
		cmd = deleteCmd()
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(cmdArgs[1:])
	err := cmd.Execute()
	return out.String(), err
}

func TestList_TableOutput(t *testing.T) {
	records := map[string]models.Irrigation{
		"-NxYzA": {Times: []string{"18:00", "20:00"}, Days: []string{}, SpecificDates: []string{"2025-07-09"}, Duration: 30, Status: models.StatusPending},
		"-NxYzB": {Times: []string{"06:00"}, Days: []string{"Mon"}, SpecificDates: []string{}, Duration: 5, Status: models.StatusInProgress},
	}
	out, err := runCmd(t, []string{"list"}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/irrigation" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(records)
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"-NxYzA", "2025-07-09", "18:00, 20:00", "every Mon", "InProgress"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestList_JSONOutput(t *testing.T) {
	out, err := runCmd(t, []string{"list", "--json"}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"-NxYzA":{"time":"18:00","times":["18:00"],"days":[],"specificDates":["2025-07-09"],"duration":30,"status":"Pending","createdAt":1737000000000,"v":1}}`))
	})
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	if !strings.Contains(out, `"duration": 30`) {
		t.Fatalf("expected JSON output, got: %s", out)
	}
}

func TestList_Empty(t *testing.T) {
	out, err := runCmd(t, []string{"list"}, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No irrigation schedules") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestCreate_SendsPayload(t *testing.T) {
	var got map[string]interface{}
	out, err := runCmd(t, []string{"create", "--date", "2025-07-09", "--time", "18:00", "--time", "20:00", "--duration", "30"},
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "POST" || r.URL.Path != "/irrigation" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"ok":true,"id":"-NxYzNew"}`))
		})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "-NxYzNew") {
		t.Errorf("expected id in output, got: %s", out)
	}
	times, _ := got["times"].([]interface{})
	if len(times) != 2 || got["duration"].(float64) != 30 || got["status"] != "Pending" {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestCreate_ReportsValidationErrors(t *testing.T) {
	_, err := runCmd(t, []string{"create", "--date", "2025-07-09", "--duration", "0"},
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"validation failed","fields":{"duration":"duration must be at least 1 minute","times":"at least one time is required"}}`))
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "duration: duration must be at least 1 minute; times:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	out, err := runCmd(t, []string{"delete", "-NxYzA"}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" || r.URL.Path != "/irrigation/-NxYzA" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, "Irrigation deleted") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestDelete_NotFound(t *testing.T) {
	_, err := runCmd(t, []string{"delete", "missing"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"irrigation record not found"}`))
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestDelete_GeneratedKey(t *testing.T) {
	id := pushid.New().Next()
	var gotPath string
	_, err := runCmd(t, []string{"delete", id}, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	if err != nil {
		t.Fatalf("delete %s: %v", id, err)
	}
	if gotPath != "/irrigation/"+id {
		t.Errorf("path: got %q, want %q", gotPath, "/irrigation/"+id)
	}
}
