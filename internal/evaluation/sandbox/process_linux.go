//go:build linux

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

const stdoutStderrMaxBytes = 64 * 1024

// ProcessRunner executes the evaluator binary directly in a process
// group. It offers no filesystem or network isolation and exists for
// development machines without a Docker daemon.
type ProcessRunner struct {
	// EvaluatorPath is the evaluator binary invoked with the standard
	// argv. Required.
	EvaluatorPath string
}

// NewProcessRunner creates a process runner.
func NewProcessRunner(evaluatorPath string) (*ProcessRunner, error) {
	if evaluatorPath == "" {
		return nil, errors.New("evaluator path is required")
	}
	return &ProcessRunner{EvaluatorPath: evaluatorPath}, nil
}

// Run executes one evaluator invocation, killing the whole process
// group when the wall clock limit passes.
func (p *ProcessRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	timeout := req.Timeout()

	cmd := exec.CommandContext(ctx, p.EvaluatorPath,
		req.CodeFile,
		req.Language,
		req.TestDataFile,
		req.OutputFile,
		strconv.Itoa(int(timeout/time.Second)),
	)
	cmd.Dir = req.WorkspaceDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = newCappedWriter(&stdout, stdoutStderrMaxBytes)
	cmd.Stderr = newCappedWriter(&stderr, stdoutStderrMaxBytes)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{}, fmt.Errorf("start evaluator: %w", err)
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(timeout):
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	result := RunResult{
		ExitCode: exitCodeFromErr(waitErr, cmd.ProcessState),
		TimedOut: timedOut.Load(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if result.TimedOut {
		return result, fmt.Errorf("evaluator timed out after %s", timeout)
	}
	if waitErr != nil && result.ExitCode == 0 {
		return result, fmt.Errorf("evaluator wait: %w", waitErr)
	}
	return result, nil
}

func killProcessGroup(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func exitCodeFromErr(waitErr error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// cappedWriter bounds captured output so a submission printing in a
// loop cannot exhaust memory.
type cappedWriter struct {
	buf *bytes.Buffer
	max int64
}

func newCappedWriter(buf *bytes.Buffer, max int64) *cappedWriter {
	return &cappedWriter{buf: buf, max: max}
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	remain := w.max - int64(w.buf.Len())
	if remain <= 0 {
		return len(p), nil
	}
	if int64(len(p)) > remain {
		w.buf.Write(p[:remain])
		return len(p), nil
	}
	return w.buf.Write(p)
}
