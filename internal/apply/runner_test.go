package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeCall struct {
	name string
	args []string
}

// fakeRunner scripts per-call results; failOn and blockOn match a substring
// of the joined command line.
type fakeRunner struct {
	calls   []fakeCall
	failOn  string
	output  string
	blockOn string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, fakeCall{name: name, args: args})
	line := name + " " + strings.Join(args, " ")
	if f.blockOn != "" && strings.Contains(line, f.blockOn) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.failOn != "" && strings.Contains(line, f.failOn) {
		return f.output, errors.New("exit status 1")
	}
	return "", nil
}

func TestApplyRunsBothPhases(t *testing.T) {
	fake := &fakeRunner{}
	r := NewRunner("/data/retina-node/manifests", time.Minute, time.Minute, WithCommandRunner(fake))

	if err := r.Apply(context.Background()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(fake.calls))
	}

	merge := strings.Join(fake.calls[0].args, " ")
	if fake.calls[0].name != "docker" || !strings.Contains(merge, "run --rm config-merger") {
		t.Errorf("merge call = %s %s", fake.calls[0].name, merge)
	}
	if !strings.Contains(merge, "/data/retina-node/manifests/docker-compose.yaml") {
		t.Errorf("merge call missing manifest: %s", merge)
	}
	restart := strings.Join(fake.calls[1].args, " ")
	if !strings.Contains(restart, "up -d --force-recreate") {
		t.Errorf("restart call = %s", restart)
	}
}

func TestApplyMergeFailureStopsRestart(t *testing.T) {
	fake := &fakeRunner{failOn: "config-merger", output: "merger exploded"}
	r := NewRunner("/m", time.Minute, time.Minute, WithCommandRunner(fake))

	err := r.Apply(context.Background())
	var applyErr *Error
	if !errors.As(err, &applyErr) {
		t.Fatalf("err = %v", err)
	}
	if applyErr.Phase != PhaseMerge || applyErr.TimedOut {
		t.Fatalf("error = %+v", applyErr)
	}
	if applyErr.Output != "merger exploded" {
		t.Fatalf("output = %q", applyErr.Output)
	}
	if got := applyErr.Error(); got != "config-merger failed: merger exploded" {
		t.Fatalf("message = %q", got)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("restart ran after merge failure: %d calls", len(fake.calls))
	}
}

func TestApplyRestartFailure(t *testing.T) {
	fake := &fakeRunner{failOn: "force-recreate", output: "no such container"}
	r := NewRunner("/m", time.Minute, time.Minute, WithCommandRunner(fake))

	err := r.Apply(context.Background())
	var applyErr *Error
	if !errors.As(err, &applyErr) {
		t.Fatalf("err = %v", err)
	}
	if applyErr.Phase != PhaseRestart || applyErr.TimedOut {
		t.Fatalf("error = %+v", applyErr)
	}
	if got := applyErr.Error(); got != "service restart failed: no such container" {
		t.Fatalf("message = %q", got)
	}
}

func TestApplyMergeTimeout(t *testing.T) {
	fake := &fakeRunner{blockOn: "config-merger"}
	r := NewRunner("/m", 20*time.Millisecond, time.Minute, WithCommandRunner(fake))

	err := r.Apply(context.Background())
	var applyErr *Error
	if !errors.As(err, &applyErr) {
		t.Fatalf("err = %v", err)
	}
	if applyErr.Phase != PhaseMerge || !applyErr.TimedOut {
		t.Fatalf("error = %+v", applyErr)
	}
	if got := applyErr.Error(); got != "config-merger timed out" {
		t.Fatalf("message = %q", got)
	}
}

func TestApplyRestartTimeoutIndependent(t *testing.T) {
	// The merge phase completes instantly; only the restart phase blocks,
	// so the timeout that fires must be the restart one.
	fake := &fakeRunner{blockOn: "force-recreate"}
	r := NewRunner("/m", time.Minute, 20*time.Millisecond, WithCommandRunner(fake))

	err := r.Apply(context.Background())
	var applyErr *Error
	if !errors.As(err, &applyErr) {
		t.Fatalf("err = %v", err)
	}
	if applyErr.Phase != PhaseRestart || !applyErr.TimedOut {
		t.Fatalf("error = %+v", applyErr)
	}
	if got := applyErr.Error(); got != "service restart timed out" {
		t.Fatalf("message = %q", got)
	}
}

func TestInstalled(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, time.Minute, time.Minute)
	if r.Installed() {
		t.Fatal("empty dir reported installed")
	}
	path := filepath.Join(dir, "docker-compose.yaml")
	if err := os.WriteFile(path, []byte("services: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !r.Installed() {
		t.Fatal("manifest present but not reported installed")
	}
}
