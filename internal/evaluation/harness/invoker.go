package harness

import (
	"context"
	"encoding/json"
)

// FuncInvoker adapts an in-process Go function to the Invoker interface.
// Tests use it to grade reference submissions without a subprocess.
type FuncInvoker struct {
	fn func(name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error)
}

// NewFuncInvoker wraps fn as an Invoker.
func NewFuncInvoker(fn func(name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (any, error)) *FuncInvoker {
	return &FuncInvoker{fn: fn}
}

// Invoke calls the wrapped function.
func (f *FuncInvoker) Invoke(_ context.Context, name string, args []json.RawMessage, kwargs map[string]json.RawMessage) (json.RawMessage, error) {
	out, err := f.fn(name, args, kwargs)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Close is a no-op.
func (f *FuncInvoker) Close() error { return nil }
