package workflow

import (
	"errors"
	"fmt"

	"github.com/pyeasyenv/pyez/internal/recovery"
)

// Sentinel errors returned by workflows.
var (
	// ErrPrecondition means the workflow stopped before launching anything.
	ErrPrecondition = errors.New("workflow precondition failed")
	// ErrStepFailed means a collaborator step did not succeed.
	ErrStepFailed = errors.New("workflow step failed")

	ErrManifestMissing = errors.New("manifest not found")
	ErrLockfileMissing = errors.New("lockfile not found")
)

// PreconditionError wraps the cause of a failed precondition. It matches
// both ErrPrecondition and Err.
type PreconditionError struct {
	Err  error
	Path string
}

func (e *PreconditionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Path)
	}

	return e.Err.Error()
}

func (e *PreconditionError) Unwrap() []error {
	return []error{ErrPrecondition, e.Err}
}

// StepError describes a failed collaborator step.
type StepError struct {
	Step     string
	ExitCode int
	Stderr   string
	// Tool is set once recovery found a missing collaborator.
	Tool  string
	State recovery.State
	// Retried is set when Tool was reinstalled and the step ran again.
	Retried bool
}

// ToolMissing reports whether the step failed because Tool is still
// missing: the reinstall was declined or did not succeed.
func (e *StepError) ToolMissing() bool {
	return e.Tool != "" && !e.Retried
}

func (e *StepError) Error() string {
	if e.ToolMissing() {
		return fmt.Sprintf("%s: required tool %s is missing", e.Step, e.Tool)
	}

	return fmt.Sprintf("%s: exit code %d", e.Step, e.ExitCode)
}

func (e *StepError) Is(target error) bool {
	return target == ErrStepFailed
}

func precondition(err error, path string) error {
	return &PreconditionError{Err: err, Path: path}
}
