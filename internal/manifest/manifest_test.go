package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJobs(t *testing.T) {
	path := writeFile(t, "jobs.yaml", `
jobs:
  - pipeline_name: compile
    ci_stage: build
    command: make lib.a
    outputs: [lib.a]
  - pipeline_name: compile
    ci_stage: test
    command: ["./run-tests", "lib.a", "--verbose mode"]
    inputs: [lib.a]
    timeout_sec: 300
    timeout_ignore: true
    pool: io
    tags: [slow, nightly]
`)

	specs, err := LoadJobs(path)
	if err != nil {
		t.Fatalf("LoadJobs() error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("LoadJobs() returned %d specs, want 2", len(specs))
	}

	first := specs[0]
	if first.Command.String() != "make lib.a" {
		t.Errorf("command = %q, want 'make lib.a'", first.Command.String())
	}
	if first.ProfileMemoryInterval != 1 {
		t.Errorf("ProfileMemoryInterval default = %d, want 1", first.ProfileMemoryInterval)
	}

	second := specs[1]
	parts := second.Command.Parts()
	if len(parts) != 3 || parts[2] != "--verbose mode" {
		t.Errorf("list-form command parts = %v, want quoting preserved", parts)
	}
	if second.TimeoutSec != 300 || !second.TimeoutIgnore {
		t.Error("timeout fields not loaded")
	}
	if second.Pool != "io" {
		t.Errorf("pool = %q, want io", second.Pool)
	}
}

func TestLoadJobs_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty manifest", "jobs: []"},
		{"missing pipeline", "jobs:\n  - ci_stage: build\n    command: true"},
		{"missing stage", "jobs:\n  - pipeline_name: p\n    command: true"},
		{"missing command", "jobs:\n  - pipeline_name: p\n    ci_stage: build"},
		{"not yaml", "{{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "jobs.yaml", tt.content)
			if _, err := LoadJobs(path); err == nil {
				t.Error("LoadJobs() should have failed")
			}
		})
	}
}

func TestLoadPools(t *testing.T) {
	path := writeFile(t, "pools.yaml", `
pools:
  - name: io
    depth: 1
  - name: cpu
    depth: 8
`)

	pools, err := LoadPools(path)
	if err != nil {
		t.Fatalf("LoadPools() error: %v", err)
	}
	want := map[string]int{"io": 1, "cpu": 8}
	for name, depth := range want {
		pool, ok := pools[name]
		if !ok {
			t.Errorf("pool %q missing", name)
			continue
		}
		if pool.Depth != depth {
			t.Errorf("pool %q depth = %d, want %d", name, pool.Depth, depth)
		}
	}
}

func TestLoadPools_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero depth", "pools:\n  - name: io\n    depth: 0"},
		{"negative depth", "pools:\n  - name: io\n    depth: -2"},
		{"empty name", "pools:\n  - name: \"\"\n    depth: 1"},
		{"duplicate name", "pools:\n  - name: io\n    depth: 1\n  - name: io\n    depth: 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "pools.yaml", tt.content)
			if _, err := LoadPools(path); err == nil {
				t.Error("LoadPools() should have failed")
			}
		})
	}
}
