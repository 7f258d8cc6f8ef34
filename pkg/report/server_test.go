package report

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRun lays out a finished step directory under buildDir.
func fakeRun(t *testing.T, buildDir, design, job string) {
	t.Helper()
	stepDir := filepath.Join(buildDir, design, job, "bench0")
	for _, sub := range []string{"inputs", "outputs", "reports"} {
		if err := os.MkdirAll(filepath.Join(stepDir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		filepath.Join(stepDir, "outputs", design+".def"): "DESIGN patterns ;\n",
		filepath.Join(stepDir, "outputs", design+".vg"):  "module patterns;\n",
		filepath.Join(stepDir, "openroad.log"):           "bench_wires done\n",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	buildDir := t.TempDir()
	fakeRun(t, buildDir, "gcd", "job0")

	srv := httptest.NewServer(NewServer(buildDir, nil, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, buildDir
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHandleRuns(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := get(t, srv.URL+"/api/runs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var runs []Run
	if err := json.Unmarshal(body, &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Design != "gcd" || runs[0].Job != "job0" {
		t.Errorf("run = %+v", runs[0])
	}
}

func TestHandleRun(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := get(t, srv.URL+"/api/runs/gcd/job0")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var run Run
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(run.Steps) != 1 {
		t.Fatalf("steps = %+v", run.Steps)
	}
	step := run.Steps[0]
	if step.Name != "bench" || !step.HasLog {
		t.Errorf("step = %+v", step)
	}
	if len(step.Outputs) != 2 {
		t.Errorf("outputs = %v, want 2 entries", step.Outputs)
	}
}

func TestHandleRunNotFound(t *testing.T) {
	srv, _ := testServer(t)

	resp, _ := get(t, srv.URL+"/api/runs/gcd/job9")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleLog(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := get(t, srv.URL+"/api/runs/gcd/job0/steps/bench/log")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "bench_wires done") {
		t.Errorf("log body = %q", body)
	}

	resp, _ = get(t, srv.URL+"/api/runs/gcd/job0/steps/missing/log")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing step log status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleIndexHTML(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := get(t, srv.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(string(body), "gcd") {
		t.Error("index does not list the run")
	}
}

func TestHandleFiles(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := get(t, srv.URL+"/files/gcd/job0/bench0/outputs/gcd.def")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "DESIGN patterns") {
		t.Errorf("file body = %q", body)
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	srv, _ := testServer(t)

	resp, body := get(t, srv.URL+"/api/history")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("history body = %q, want empty list", body)
	}
}

func TestIndexEmptyBuildDir(t *testing.T) {
	runs, err := Index(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %v, want none", runs)
	}
}
