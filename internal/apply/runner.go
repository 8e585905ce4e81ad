// Package apply drives the external reconfiguration of the retina-node
// service stack: re-running the config-merger so the override file is folded
// into a fresh merged configuration, then force-recreating the containers so
// they pick it up. Both steps run outside this process; apply only invokes
// them and reports which one failed.
package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Phase identifies which external step an apply error belongs to.
type Phase string

const (
	PhaseMerge   Phase = "merge"
	PhaseRestart Phase = "restart"
)

// composeFile is the manifest name retina-node ships under its manifests
// directory. Its presence is how the console knows the stack is deployed.
const composeFile = "docker-compose.yaml"

// Error reports a failed or timed-out apply phase with the raw diagnostic
// output from the external tool.
type Error struct {
	Phase    Phase
	TimedOut bool
	Output   string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.TimedOut && e.Phase == PhaseMerge:
		return "config-merger timed out"
	case e.TimedOut:
		return "service restart timed out"
	case e.Phase == PhaseMerge:
		return fmt.Sprintf("config-merger failed: %s", e.Output)
	default:
		return fmt.Sprintf("service restart failed: %s", e.Output)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// CommandRunner executes one external command and returns its combined
// output. Production uses os/exec; tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Runner applies configuration changes to an installed retina-node.
type Runner struct {
	manifestDir    string
	mergeTimeout   time.Duration
	restartTimeout time.Duration
	cmd            CommandRunner
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommandRunner substitutes the command execution backend.
func WithCommandRunner(cmd CommandRunner) Option {
	return func(r *Runner) { r.cmd = cmd }
}

// NewRunner creates a runner for the manifests directory. Each phase gets an
// independent timeout; exceeding either surfaces as a distinct timeout error,
// never a hang.
func NewRunner(manifestDir string, mergeTimeout, restartTimeout time.Duration, opts ...Option) *Runner {
	r := &Runner{
		manifestDir:    manifestDir,
		mergeTimeout:   mergeTimeout,
		restartTimeout: restartTimeout,
		cmd:            execRunner{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Installed reports whether the retina-node compose manifest is present.
func (r *Runner) Installed() bool {
	_, err := os.Stat(filepath.Join(r.manifestDir, composeFile))
	return err == nil
}

// Apply runs the merge phase then the restart phase. The returned error, if
// any, is an *Error identifying the failing phase.
func (r *Runner) Apply(ctx context.Context) error {
	manifest := filepath.Join(r.manifestDir, composeFile)

	if err := r.runPhase(ctx, PhaseMerge, r.mergeTimeout,
		"docker", "compose", "-f", manifest, "run", "--rm", "config-merger"); err != nil {
		return err
	}
	return r.runPhase(ctx, PhaseRestart, r.restartTimeout,
		"docker", "compose", "-f", manifest, "up", "-d", "--force-recreate")
}

func (r *Runner) runPhase(ctx context.Context, phase Phase, timeout time.Duration, name string, args ...string) error {
	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := r.cmd.Run(phaseCtx, name, args...)
	if err == nil {
		return nil
	}
	return &Error{
		Phase:    phase,
		TimedOut: errors.Is(phaseCtx.Err(), context.DeadlineExceeded),
		Output:   out,
		Err:      err,
	}
}
