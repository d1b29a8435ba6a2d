package harness

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// invokeRequest and invokeResponse are the line protocol between the
// harness and the language runner: one JSON object per line each way.
type invokeRequest struct {
	Function string                     `json:"function"`
	Args     []json.RawMessage          `json:"args"`
	Kwargs   map[string]json.RawMessage `json:"kwargs,omitempty"`
}

type invokeResponse struct {
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
}

// ProcessInvoker runs the submission inside a single language-runner
// subprocess and calls its entry point over stdin/stdout. Keeping one
// process for the whole run preserves state between calls.
type ProcessInvoker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	closed bool
}

// NewProcessInvoker starts the runner. argv is the full command line,
// typically the language runtime plus the runner script and the
// submission path.
func NewProcessInvoker(ctx context.Context, argv ...string) (*ProcessInvoker, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("runner command is required")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open runner stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open runner stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start runner: %w", err)
	}
	return &ProcessInvoker{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// Invoke sends one call and reads one response line.
func (p *ProcessInvoker) Invoke(ctx context.Context, name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("runner is closed")
	}
	req, err := json.Marshal(invokeRequest{Function: name, Args: args, Kwargs: kwargs})
	if err != nil {
		return nil, err
	}
	if _, err := p.stdin.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("write to runner: %w", err)
	}

	type lineResult struct {
		line []byte
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.stdout.ReadBytes('\n')
		ch <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("read from runner: %w", res.err)
		}
		var resp invokeResponse
		if err := json.Unmarshal(res.line, &resp); err != nil {
			return nil, fmt.Errorf("decode runner response: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("%s", resp.Error)
		}
		return resp.Result, nil
	}
}

// Close shuts the runner down, killing the process group if it does not
// exit with stdin.
func (p *ProcessInvoker) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	}
	return p.cmd.Wait()
}
