package openroad

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/rcxbench/rcxbench/pkg/errors"
	"github.com/rcxbench/rcxbench/pkg/schema"
	"github.com/rcxbench/rcxbench/pkg/tech"
	"github.com/rcxbench/rcxbench/pkg/tools"
)

const testLEF = `
LAYER met1
  TYPE ROUTING ;
END met1
LAYER met2
  TYPE ROUTING ;
END met2
LAYER met3
  TYPE ROUTING ;
END met3
`

func testManifest(t *testing.T) *schema.Manifest {
	t.Helper()
	m := schema.New("gcd")
	m.Set(schema.TaskVarPath("openroad", TaskRCXBench, "bench_length"), "100")
	m.Set(schema.TaskVarPath("openroad", TaskRCXBench, "max_layer"), "met3")
	return m
}

func testInfo(t *testing.T, m *schema.Manifest) *tools.RunInfo {
	t.Helper()
	db, err := tech.ParseLEF(strings.NewReader(testLEF), "test")
	if err != nil {
		t.Fatal(err)
	}

	workDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(workDir, "outputs"), 0755); err != nil {
		t.Fatal(err)
	}

	return &tools.RunInfo{
		Design:   "gcd",
		Step:     "rcx_bench",
		Task:     TaskRCXBench,
		Index:    "0",
		WorkDir:  workDir,
		Manifest: m,
		Tech:     db,
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
}

// fakeTool installs a shell script standing in for the OpenROAD binary and
// points the manifest's exe override at it.
func fakeTool(t *testing.T, m *schema.Manifest, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "openroad")
	script := `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo "v2.0-fake"
  exit 0
fi
` + body
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	m.Set("tool.openroad.exe", path)
}

func TestRegistered(t *testing.T) {
	d, err := tools.Lookup("openroad")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if d.Name() != "openroad" {
		t.Errorf("Name = %q", d.Name())
	}
}

func TestScript(t *testing.T) {
	d := &driver{}
	info := testInfo(t, testManifest(t))

	script, err := d.Script(info)
	if err != nil {
		t.Fatalf("Script error: %v", err)
	}

	// met3 is routing level 3 in the test stack
	wantLines := []string{
		"bench_wires -met_cnt 3 -len 100 -all",
		"bench_verilog outputs/gcd.vg",
		"write_def outputs/gcd.def",
	}
	for _, want := range wantLines {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}

	// Scripts are deterministic for cache keying
	again, err := d.Script(info)
	if err != nil {
		t.Fatal(err)
	}
	if script != again {
		t.Error("Script is not deterministic")
	}
}

func TestScriptErrors(t *testing.T) {
	d := &driver{}

	t.Run("unknown task", func(t *testing.T) {
		info := testInfo(t, testManifest(t))
		info.Task = "floorplan"
		if _, err := d.Script(info); !errors.Is(err, errors.ErrCodeUnsupported) {
			t.Errorf("error = %v, want UNSUPPORTED", err)
		}
	})

	t.Run("missing bench_length", func(t *testing.T) {
		m := schema.New("gcd")
		m.Set(schema.TaskVarPath("openroad", TaskRCXBench, "max_layer"), "met3")
		info := testInfo(t, m)
		if _, err := d.Script(info); !errors.Is(err, errors.ErrCodeKeyNotFound) {
			t.Errorf("error = %v, want KEY_NOT_FOUND", err)
		}
	})

	t.Run("non-positive bench_length", func(t *testing.T) {
		m := testManifest(t)
		m.Set(schema.TaskVarPath("openroad", TaskRCXBench, "bench_length"), "0")
		info := testInfo(t, m)
		if _, err := d.Script(info); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("error = %v, want INVALID_CONFIG", err)
		}
	})

	t.Run("unresolvable layer", func(t *testing.T) {
		m := testManifest(t)
		m.Set(schema.TaskVarPath("openroad", TaskRCXBench, "max_layer"), "metal9")
		info := testInfo(t, m)
		if _, err := d.Script(info); !errors.Is(err, errors.ErrCodeLayerNotFound) {
			t.Errorf("error = %v, want LAYER_NOT_FOUND", err)
		}
	})
}

func TestRun(t *testing.T) {
	d := &driver{}
	m := testManifest(t)
	fakeTool(t, m, `
echo "[INFO RCX-0001] generating bench wires"
touch outputs/gcd.vg outputs/gcd.def
`)
	info := testInfo(t, m)

	script, err := d.Script(info)
	if err != nil {
		t.Fatal(err)
	}

	result, err := d.Run(context.Background(), info, script)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Metrics["errors"] != 0 {
		t.Errorf("errors metric = %v, want 0", result.Metrics["errors"])
	}
	want := []string{
		filepath.Join("outputs", "gcd.def"),
		filepath.Join("outputs", "gcd.vg"),
	}
	if !reflect.DeepEqual(result.Outputs, want) {
		t.Errorf("Outputs = %v, want %v", result.Outputs, want)
	}

	// The script lands next to the log in the work dir
	if _, err := os.Stat(filepath.Join(info.WorkDir, TaskRCXBench+".tcl")); err != nil {
		t.Errorf("script file not written: %v", err)
	}
	if !strings.HasSuffix(result.LogFile, ".log") {
		t.Errorf("LogFile = %q", result.LogFile)
	}
}

func TestRunLogErrors(t *testing.T) {
	// OpenROAD can exit zero after a script error; the log scan must
	// catch it.
	d := &driver{}
	m := testManifest(t)
	fakeTool(t, m, `
echo "[ERROR RCX-0002] no design loaded"
exit 0
`)
	info := testInfo(t, m)

	script, err := d.Script(info)
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Run(context.Background(), info, script)
	if !errors.Is(err, errors.ErrCodeToolFailed) {
		t.Errorf("error = %v, want TOOL_FAILED", err)
	}
}

func TestRunNonzeroExit(t *testing.T) {
	d := &driver{}
	m := testManifest(t)
	fakeTool(t, m, `exit 3`)
	info := testInfo(t, m)

	script, err := d.Script(info)
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Run(context.Background(), info, script)
	if !errors.Is(err, errors.ErrCodeToolFailed) {
		t.Errorf("error = %v, want TOOL_FAILED", err)
	}
}

func TestVersion(t *testing.T) {
	d := &driver{}
	m := testManifest(t)
	fakeTool(t, m, "")

	v, err := d.Version(context.Background(), m)
	if err != nil {
		t.Fatalf("Version error: %v", err)
	}
	if v != "v2.0-fake" {
		t.Errorf("Version = %q, want v2.0-fake", v)
	}
}

func TestVersionMissingBinary(t *testing.T) {
	d := &driver{}
	m := schema.New("gcd")
	m.Set("tool.openroad.exe", filepath.Join(t.TempDir(), "nonexistent"))

	if _, err := d.Version(context.Background(), m); !errors.Is(err, errors.ErrCodeToolVersion) {
		t.Errorf("error = %v, want TOOL_VERSION", err)
	}
}

func TestScanLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openroad.log")
	content := `[INFO RCX-0001] generating bench wires
[WARNING RCX-0010] layer met5 has no resistance table
Warning: deprecated flag
[ERROR RCX-0002] no design loaded
Error: something else
plain line
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	errs, warns, err := scanLog(path)
	if err != nil {
		t.Fatalf("scanLog error: %v", err)
	}
	if errs != 2 {
		t.Errorf("errors = %d, want 2", errs)
	}
	if warns != 2 {
		t.Errorf("warnings = %d, want 2", warns)
	}
}
