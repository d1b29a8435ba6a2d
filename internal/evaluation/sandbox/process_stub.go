//go:build !linux

package sandbox

import (
	"context"
	"errors"
)

// ProcessRunner is only implemented on linux.
type ProcessRunner struct {
	EvaluatorPath string
}

func NewProcessRunner(evaluatorPath string) (*ProcessRunner, error) {
	if evaluatorPath == "" {
		return nil, errors.New("evaluator path is required")
	}
	return &ProcessRunner{EvaluatorPath: evaluatorPath}, nil
}

func (p *ProcessRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	return RunResult{}, errors.New("process runner is only supported on linux")
}
