//go:build !linux

package harness

import (
	"context"
	"encoding/json"
	"errors"
)

// ProcessInvoker is only implemented on linux.
type ProcessInvoker struct{}

func NewProcessInvoker(ctx context.Context, argv ...string) (*ProcessInvoker, error) {
	return nil, errors.New("process invoker is only supported on linux")
}

func (p *ProcessInvoker) Invoke(ctx context.Context, functionName string, args []json.RawMessage, kwargs map[string]json.RawMessage) (json.RawMessage, error) {
	return nil, errors.New("process invoker is only supported on linux")
}

func (p *ProcessInvoker) Close() error { return nil }
