package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadProfile(t *testing.T) {

	path := filepath.Join(t.TempDir(), "profile.yaml")
	content := `input: ./assemblies
output: ./results
busco: true
lineage: bacteria_odb10
ani: true
cpus: 8
parallel: 2
busco_timeout: 90m
keep_workspace: true
db: ./history.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}

	want := &Profile{
		Input:         "./assemblies",
		Output:        "./results",
		Busco:         true,
		Lineage:       "bacteria_odb10",
		ANI:           true,
		CPUs:          8,
		Parallel:      2,
		BuscoTimeout:  "90m",
		KeepWorkspace: true,
		DB:            "./history.db",
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("profile mismatch:\n%s", diff)
	}
}

func TestLoadProfileMissing(t *testing.T) {

	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing profile")
	}
}

func TestParseTimeout(t *testing.T) {

	d, err := parseTimeout("90m", "busco_timeout")
	if err != nil || d != 90*time.Minute {
		t.Errorf("parseTimeout(90m) = %v, %v", d, err)
	}

	d, err = parseTimeout("", "busco_timeout")
	if err != nil || d != 0 {
		t.Errorf("parseTimeout(empty) = %v, %v", d, err)
	}

	if _, err := parseTimeout("soon", "busco_timeout"); err == nil {
		t.Error("expected an error for a malformed duration")
	}
}
