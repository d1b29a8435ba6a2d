// Package sandbox isolates submission code while the evaluator grades
// it. The Docker runner is the production engine; the process runner
// exists for environments without a Docker daemon, mainly development.
package sandbox

import (
	"context"
	"time"
)

// DefaultTimeout bounds one evaluator run.
const DefaultTimeout = 30 * time.Second

// RunRequest describes one evaluator invocation. The evaluator receives
// the classic argv: code file, language, test data file, output file and
// the timeout in seconds.
type RunRequest struct {
	WorkspaceDir   string
	CodeFile       string
	Language       string
	TestDataFile   string
	OutputFile     string
	TimeoutSeconds int
}

// RunResult is the raw outcome of a sandbox run. The orchestrator reads
// the output file itself; stdout and stderr are kept for diagnostics.
type RunResult struct {
	ExitCode int
	TimedOut bool
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes an evaluator inside an isolation boundary.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// Timeout returns the request timeout as a duration, defaulted.
func (r RunRequest) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}
