package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapgate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/snap/AAA":
			_, _ = w.Write([]byte(`{"liquiditySignal": 900, "historyDays": 75}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeTestConfig(t, `
cache:
  backend: file
  dir: `+dir+`
source:
  base_url: `+srv.URL+`/snap
observe:
  log_level: error
`)

	out, err := execute(t, "run", "--config", path, "--category", "directional", "--as-of", "2026-10-16", "AAA", "ZZZ")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}

	var got cycleOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.AsOf != "2026-10-16" || got.Namespace != "live" || len(got.Records) != 2 {
		t.Fatalf("output = %+v", got)
	}
	if got.Records[0].Record.Status != "READY" || got.Records[1].Record.Status != "INCOMPLETE_DATA" {
		t.Errorf("statuses = %s, %s; want READY, INCOMPLETE_DATA", got.Records[0].Record.Status, got.Records[1].Record.Status)
	}

	out, err = execute(t, "freeze", "--config", path, "week42")
	if err != nil {
		t.Fatalf("freeze error = %v", err)
	}
	if !strings.Contains(out, "froze 1 entries") {
		t.Errorf("freeze output = %q", out)
	}

	srv.Close()
	out, err = execute(t, "run", "--config", path, "--category", "directional", "--as-of", "2026-10-16", "--replay", "week42", "AAA")
	if err != nil {
		t.Fatalf("replay run error = %v", err)
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Namespace != "week42" || got.Records[0].Record.Status != "READY" {
		t.Errorf("replay output = %+v", got)
	}
}

func TestStatsAndClear(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, "cache:\n  dir: "+dir+"\nobserve:\n  log_level: error\n")

	out, err := execute(t, "stats", "--config", path)
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(out, `"entry_count": 0`) {
		t.Errorf("stats output = %s", out)
	}

	out, err = execute(t, "clear", "--config", path, "--subject", "AAA")
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if !strings.Contains(out, "cleared 0 entries from live") {
		t.Errorf("clear output = %q", out)
	}
}

func TestRun_RequiresSource(t *testing.T) {
	path := writeTestConfig(t, "cache:\n  backend: memory\nobserve:\n  log_level: error\n")
	if _, err := execute(t, "run", "--config", path, "AAA"); err == nil || !strings.Contains(err.Error(), "source.base_url") {
		t.Errorf("run error = %v, want missing source.base_url", err)
	}
}

func TestRun_BadAsOf(t *testing.T) {
	if _, err := execute(t, "run", "--as-of", "16/10/2026", "AAA"); err == nil {
		t.Error("run error = nil, want as-of parse error")
	}
}
