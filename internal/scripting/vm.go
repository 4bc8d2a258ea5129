// Package scripting runs user JavaScript that plays a lottery board.
package scripting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// LogEntry is a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// VM wraps a goja runtime with sandbox restrictions and injected globals.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int

	stopRequested bool

	initTimeout time.Duration
	callTimeout time.Duration
}

const (
	defaultInitTimeout = 2 * time.Second
	defaultCallTimeout = time.Second
	defaultMaxLogs     = 500
)

// NewVM creates a sandboxed runtime.
func NewVM() *VM {
	vm := &VM{
		runtime:     goja.New(),
		maxLogs:     defaultMaxLogs,
		initTimeout: defaultInitTimeout,
		callTimeout: defaultCallTimeout,
	}
	vm.injectGlobalFunctions()
	return vm
}

func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		vm.appendLog(strings.Join(parts, " "))
		return goja.Undefined()
	})

	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	// stop() only runs inside Execute or CallPick, which already hold mu.
	vm.runtime.Set("stop", func(call goja.FunctionCall) goja.Value {
		vm.stopRequested = true
		return goja.Undefined()
	})

	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

func (vm *VM) appendLog(msg string) {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	if len(vm.logs) >= vm.maxLogs {
		vm.logs = vm.logs[1:]
	}
	vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
}

// Execute runs the script source once to define pick().
func (vm *VM) Execute(ctx context.Context, source string) error {
	return vm.runWithTimeout(ctx, vm.initTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if _, err := vm.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		fn := vm.runtime.Get("pick")
		if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
			return fmt.Errorf("pick() function is not defined")
		}
		if _, ok := goja.AssertFunction(fn); !ok {
			return fmt.Errorf("pick is not a function")
		}
		return nil
	})
}

// cardArg is the view of a card handed to pick().
type cardArg struct {
	ID       int  `json:"id"`
	Revealed bool `json:"revealed"`
	Winner   bool `json:"winner"`
}

// CallPick calls pick(cards) and returns the chosen card id.
func (vm *VM) CallPick(ctx context.Context, cards []cardArg) (int, error) {
	var out int
	err := vm.runWithTimeout(ctx, vm.callTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()

		callable, ok := goja.AssertFunction(vm.runtime.Get("pick"))
		if !ok {
			return fmt.Errorf("pick is not a function")
		}

		arg := make([]any, len(cards))
		for i, c := range cards {
			arg[i] = map[string]any{"id": c.ID, "revealed": c.Revealed, "winner": c.Winner}
		}
		result, err := callable(goja.Undefined(), vm.runtime.ToValue(arg))
		if err != nil {
			return fmt.Errorf("pick() error: %w", err)
		}
		if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
			return fmt.Errorf("pick() must return a card id")
		}
		switch v := result.Export().(type) {
		case int64:
			out = int(v)
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("pick() returned non-integer %v", v)
			}
			out = int(v)
		default:
			return fmt.Errorf("pick() returned %T, want a number", v)
		}
		return nil
	})
	return out, err
}

// StopRequested reports whether the script called stop().
func (vm *VM) StopRequested() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.stopRequested
}

// Logs returns a copy of the log buffer.
func (vm *VM) Logs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}

func (vm *VM) runWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var reason string
	select {
	case err := <-done:
		return err
	case <-timer.C:
		reason = "script execution timeout"
	case <-ctx.Done():
		reason = "script cancelled"
	}

	// Interrupt a runaway script.
	vm.runtime.Interrupt(reason)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", reason, err)
		}
		return fmt.Errorf("%s", reason)
	case <-time.After(200 * time.Millisecond):
		return fmt.Errorf("%s", reason)
	}
}
