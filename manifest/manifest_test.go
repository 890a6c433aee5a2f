package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[runtime]
heap-size = 64
stack-hint = 16
workers = 4
max-ticks = 10000
stop-when-idle = false
idle-poll = "250ms"
halt-on-type-error = false

[log]
verbosity = 2
path = "avm.log"

[metrics]
listen = ":9100"

[[actors]]
name = "server"
image = "images/server.avm"

[[actors]]
image = "/abs/client.avm"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	r := m.Runtime
	if r.HeapSize != 64 {
		t.Errorf("heap-size = %d, want 64", r.HeapSize)
	}
	if r.StackHint != 16 {
		t.Errorf("stack-hint = %d, want 16", r.StackHint)
	}
	if r.Workers != 4 {
		t.Errorf("workers = %d, want 4", r.Workers)
	}
	if r.MaxTicks != 10000 {
		t.Errorf("max-ticks = %d, want 10000", r.MaxTicks)
	}
	if r.StopWhenIdle {
		t.Error("stop-when-idle = true, want false")
	}
	if r.IdlePoll != 250*time.Millisecond {
		t.Errorf("idle-poll = %s, want 250ms", r.IdlePoll)
	}
	if r.HaltOnTypeError {
		t.Error("halt-on-type-error = true, want false")
	}
	if m.Log.Verbosity != 2 || m.Log.Path != "avm.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if m.Metrics.Listen != ":9100" {
		t.Errorf("metrics listen = %q", m.Metrics.Listen)
	}
	if len(m.Actors) != 2 {
		t.Fatalf("actors count = %d, want 2", len(m.Actors))
	}
	if got := m.ImagePath(m.Actors[0]); got != filepath.Join(m.Dir, "images", "server.avm") {
		t.Errorf("image path = %q", got)
	}
	if got := m.ImagePath(m.Actors[1]); got != "/abs/client.avm" {
		t.Errorf("absolute image path = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[log]
verbosity = 1
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	r := m.Runtime
	if r.HeapSize != DefaultHeapSize {
		t.Errorf("default heap-size = %d", r.HeapSize)
	}
	if r.Workers != DefaultWorkers {
		t.Errorf("default workers = %d", r.Workers)
	}
	if r.IdlePoll != DefaultIdlePoll {
		t.Errorf("default idle-poll = %s", r.IdlePoll)
	}
	if !r.StopWhenIdle || !r.HaltOnTypeError {
		t.Errorf("boolean defaults = %+v", r)
	}
	if r.MaxTicks != 0 {
		t.Errorf("default max-ticks = %d, want unlimited", r.MaxTicks)
	}
}

func TestExplicitZeroHeap(t *testing.T) {
	m, err := Parse([]byte("[runtime]\nheap-size = 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Runtime.HeapSize != 0 {
		t.Errorf("heap-size = %d, want explicit 0", m.Runtime.HeapSize)
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if err := m.Validate(); err != nil {
		t.Errorf("default manifest invalid: %v", err)
	}
	if m.Runtime.HeapSize != DefaultHeapSize || len(m.Actors) != 0 {
		t.Errorf("Default() = %+v", m)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[runtime]\nheap = 3\n"))
	if err == nil || !strings.Contains(err.Error(), "runtime.heap") {
		t.Errorf("err = %v, want unknown key runtime.heap", err)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[runtime]
heap-size = -1
workers = -2

[[actors]]
name = "a"
image = "a.avm"

[[actors]]
name = "a"
image = "b.avm"

[[actors]]
name = "c"
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"heap-size", "workers", `duplicate name "a"`, "actors[2]: image is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[runtime]\nworkers = 3\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Runtime.Workers != 3 {
		t.Errorf("workers = %d, want 3", m.Runtime.Workers)
	}
	abs, _ := filepath.Abs(dir)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no actorvm.toml exists")
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[runtime\n")
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("err = %v", err)
	}
}
