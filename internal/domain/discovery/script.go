package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/mcp-scooter/toolbridge/internal/logger"
)

// DefaultScriptTimeout bounds a whole script run, tool calls included.
const DefaultScriptTimeout = 2 * time.Minute

// ToolCaller is the part of Gateway a script can reach.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments json.RawMessage, opts ...CallOption) (json.RawMessage, error)
}

// ScriptRunner chains gateway tools from a JavaScript snippet. The script
// body runs as a function, so it may return a value. It sees:
//
//	args                 the arguments passed to Run
//	callTool(name, args) calls a namespaced tool and returns its result
//	textOf(result)       the text extracted from a tool result, or null
//	log(msg)             appends to the run's log
//
// This is a convenience, not a sandbox.
type ScriptRunner struct {
	caller  ToolCaller
	timeout time.Duration
}

func NewScriptRunner(caller ToolCaller, timeout time.Duration) *ScriptRunner {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	return &ScriptRunner{caller: caller, timeout: timeout}
}

// ScriptResult is what a script returned plus everything it logged.
type ScriptResult struct {
	Value any      `json:"value"`
	Logs  []string `json:"logs,omitempty"`
}

// Run executes script. A fresh runtime is used for every run.
func (r *ScriptRunner) Run(ctx context.Context, script string, args map[string]any) (*ScriptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	res := &ScriptResult{}

	if args == nil {
		args = map[string]any{}
	}
	if err := vm.Set("args", args); err != nil {
		return nil, err
	}
	if err := vm.Set("log", func(msg goja.Value) {
		line := msg.String()
		res.Logs = append(res.Logs, line)
		logger.Debugf("[script] %s", line)
	}); err != nil {
		return nil, err
	}
	if err := vm.Set("callTool", func(name string, params goja.Value) any {
		var raw json.RawMessage
		if params != nil && !goja.IsUndefined(params) && !goja.IsNull(params) {
			data, err := json.Marshal(params.Export())
			if err != nil {
				panic(vm.NewTypeError("callTool %s: arguments: %v", name, err))
			}
			raw = data
		}
		result, err := r.caller.CallTool(ctx, name, raw)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("callTool %s: %w", name, err)))
		}
		var out any
		if err := json.Unmarshal(result, &out); err != nil {
			panic(vm.NewGoError(err))
		}
		return out
	}); err != nil {
		return nil, err
	}
	if err := vm.Set("textOf", func(result goja.Value) any {
		data, err := json.Marshal(result.Export())
		if err != nil {
			return nil
		}
		if text, ok := ExtractText(data); ok {
			return text
		}
		return nil
	}); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	value, err := vm.RunString("(function() {\n" + script + "\n})()")
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("script interrupted: %w", ctx.Err())
		}
		return res, err
	}
	if value != nil {
		res.Value = value.Export()
	}
	return res, nil
}
