package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// wrapValue wraps user code as the body of an immediately-invoked function so
// a top-level return statement yields the call's result. Without a return the
// result is the realm's undefined.
func wrapValue(code string) string {
	return "(function() {\n" + code + "\n})();"
}

// wrapTemplate wraps user code so that after it runs, every extracted name
// that is actually bound is copied into an accumulator object, which becomes
// the wrapper's return value. The accumulator lives under the reserved prefix
// and extraction already dropped any user declaration carrying that prefix.
func wrapTemplate(code string, names []string, reservedPrefix string) string {
	acc := reservedPrefix + "vars"

	var b strings.Builder
	b.WriteString("(function() {\n")
	b.WriteString(code)
	b.WriteString("\n;var " + acc + " = {};\n")
	for _, name := range names {
		fmt.Fprintf(&b, "if (typeof %s !== 'undefined') { %s[%q] = %s; }\n", name, acc, name, name)
	}
	b.WriteString("return " + acc + ";\n})();")
	return b.String()
}

// evaluate compiles and runs a wrapped script inside the realm under a hard
// wall-clock budget. A watchdog goroutine interrupts the interpreter when the
// budget elapses or the caller's context is cancelled; the interrupt is
// pre-emptive and aborts tight loops that contain no suspension points. Any
// panic from the interpreter is recovered and reported as an internal error
// so no host-language fault ever escapes the engine.
func evaluate(ctx context.Context, realm *Realm, src string, timeout time.Duration) (value goja.Value, scriptErr *ScriptError) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			scriptErr = NewInternalError(fmt.Sprintf("panic during execution: %v", r))
		}
	}()

	var mu sync.Mutex
	var timedOut, cancelled bool

	done := make(chan struct{})
	defer close(done)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		select {
		case <-timer.C:
			mu.Lock()
			timedOut = true
			mu.Unlock()
			realm.interrupt("script timed out")
		case <-ctx.Done():
			mu.Lock()
			cancelled = true
			mu.Unlock()
			realm.interrupt("execution cancelled")
		case <-done:
		}
	}()

	val, err := realm.vm.RunString(src)
	if err != nil {
		mu.Lock()
		wasTimeout, wasCancelled := timedOut, cancelled
		mu.Unlock()

		if wasTimeout {
			return nil, NewTimeoutError(timeout.String())
		}
		if wasCancelled {
			return nil, NewInternalError("execution cancelled: " + ctx.Err().Error())
		}
		return nil, wrapEvalError(err)
	}

	return val, nil
}

// normalizeValue round-trips an exported script result through JSON so
// callers always observe plain JSON types (bool, float64, string, []interface{},
// map[string]interface{}, nil) regardless of interpreter internals. Results
// that cannot be rendered to JSON, such as functions, fail closed.
func normalizeValue(v interface{}) (interface{}, *ScriptError) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &ScriptError{
			Category: ErrorCategoryRuntime,
			Message:  fmt.Sprintf("script result is not JSON-serializable: %v", err),
		}
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewInternalError("failed to normalize script result: " + err.Error())
	}
	return out, nil
}

// normalizeVariables normalizes a template-mode accumulator. A script that
// returned early never reaches the harvest step; that yields an empty mapping
// rather than a failure.
func normalizeVariables(v interface{}) (map[string]interface{}, *ScriptError) {
	normalized, scriptErr := normalizeValue(v)
	if scriptErr != nil {
		return nil, scriptErr
	}
	if normalized == nil {
		return map[string]interface{}{}, nil
	}
	vars, ok := normalized.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, nil
	}
	return vars, nil
}
