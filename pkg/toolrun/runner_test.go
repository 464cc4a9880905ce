package toolrun

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {

	r := &Runner{}
	res := r.Run(context.Background(), Unit{
		ID:  "ok",
		Cmd: Command{Name: "sh", Args: []string{"-c", "echo hello"}},
	})

	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !bytes.Contains(res.Output, []byte("hello")) {
		t.Errorf("output missing, got %q", res.Output)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", res.Elapsed)
	}
}

func TestRunDistinguishesFailures(t *testing.T) {

	r := &Runner{}

	t.Run("NonZeroExit", func(t *testing.T) {
		res := r.Run(context.Background(), Unit{
			ID:  "exit",
			Cmd: Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}},
		})

		var xerr *ExecError
		if !errors.As(res.Err, &xerr) {
			t.Fatalf("expected ExecError, got %T: %v", res.Err, res.Err)
		}
		if xerr.ExitCode != 3 || res.ExitCode != 3 {
			t.Errorf("exit code = %d/%d, want 3", xerr.ExitCode, res.ExitCode)
		}
		if !bytes.Contains(res.Output, []byte("boom")) {
			t.Errorf("stderr not captured, got %q", res.Output)
		}
	})

	t.Run("BinaryNotFound", func(t *testing.T) {
		res := r.Run(context.Background(), Unit{
			ID:  "missing",
			Cmd: Command{Name: "no-such-binary-genomecheck"},
		})

		if !errors.Is(res.Err, ErrToolUnavailable) {
			t.Errorf("expected ErrToolUnavailable, got %v", res.Err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		res := r.Run(context.Background(), Unit{
			ID:  "slow",
			Cmd: Command{Name: "sleep", Args: []string{"5"}, Timeout: 100 * time.Millisecond},
		})

		if !errors.Is(res.Err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", res.Err)
		}
		if res.Elapsed > 3*time.Second {
			t.Errorf("timeout did not kill the process, took %v", res.Elapsed)
		}
	})
}

func TestRunAllIsolatesFailures(t *testing.T) {

	r := &Runner{}
	units := []Unit{
		{ID: "a", Cmd: Command{Name: "sh", Args: []string{"-c", "echo a"}}},
		{ID: "b", Cmd: Command{Name: "sh", Args: []string{"-c", "exit 1"}}},
		{ID: "c", Cmd: Command{Name: "sh", Args: []string{"-c", "echo c"}}},
	}

	results := r.RunAll(context.Background(), units, 2)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, id := range []string{"a", "b", "c"} {
		if results[i].UnitID != id {
			t.Errorf("results[%d].UnitID = %q, want %q", i, results[i].UnitID, id)
		}
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("healthy units failed: %v, %v", results[0].Err, results[2].Err)
	}
	var xerr *ExecError
	if !errors.As(results[1].Err, &xerr) {
		t.Errorf("expected ExecError for unit b, got %v", results[1].Err)
	}
}

func TestRunAllProgressEvents(t *testing.T) {

	var mu sync.Mutex
	counts := make(map[string]map[Phase]int)

	r := &Runner{
		Progress: func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			if counts[ev.UnitID] == nil {
				counts[ev.UnitID] = make(map[Phase]int)
			}
			counts[ev.UnitID][ev.Phase]++
		},
	}

	units := []Unit{
		{ID: "u1", Cmd: Command{Name: "true"}},
		{ID: "u2", Cmd: Command{Name: "false"}},
		{ID: "u3", Cmd: Command{Name: "true"}},
	}
	r.RunAll(context.Background(), units, 3)

	for _, u := range units {
		got := counts[u.ID]
		if got[PhaseStarted] != 1 || got[PhaseFinished] != 1 {
			t.Errorf("unit %s events = %v, want one started and one finished", u.ID, got)
		}
	}
}

func TestRunAllCancellation(t *testing.T) {

	marker := filepath.Join(t.TempDir(), "ran")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // canceled before anything is scheduled

	r := &Runner{}
	results := r.RunAll(ctx, []Unit{
		{ID: "skipped", Cmd: Command{Name: "touch", Args: []string{marker}}},
	}, 1)

	if results[0].Err == nil {
		t.Fatal("expected a cancellation error")
	}
	if _, err := os.Stat(marker); err == nil {
		t.Error("unit ran despite canceled context")
	}
}
