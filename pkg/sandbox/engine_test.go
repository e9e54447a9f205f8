package sandbox

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	engine, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestExecuteValueMode(t *testing.T) {
	engine := newTestEngine(t, Config{})

	tests := []struct {
		name string
		code string
		data interface{}
		want interface{}
	}{
		{
			name: "arithmetic on injected data",
			code: "return $.price * 1000;",
			data: map[string]interface{}{"price": 3.5},
			want: float64(3500),
		},
		{
			name: "string building",
			code: "return 'Hello ' + $.name;",
			data: map[string]interface{}{"name": "World"},
			want: "Hello World",
		},
		{
			name: "no return yields nil",
			code: "var unused = 1;",
			data: nil,
			want: nil,
		},
		{
			name: "returning null",
			code: "return null;",
			data: nil,
			want: nil,
		},
		{
			name: "json round trip inside realm",
			code: "return JSON.parse(JSON.stringify({n: 1}));",
			data: nil,
			want: map[string]interface{}{"n": float64(1)},
		},
		{
			name: "date arithmetic",
			code: "return new Date(0).getTime();",
			data: nil,
			want: float64(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.ExecuteValue(context.Background(), tt.code, tt.data)
			if !result.Success {
				t.Fatalf("expected success, got error: %s", result.Error)
			}
			if !reflect.DeepEqual(result.Value, tt.want) {
				t.Errorf("value = %#v, want %#v", result.Value, tt.want)
			}
			if result.Error != "" {
				t.Errorf("successful result must not carry an error, got %q", result.Error)
			}
		})
	}
}

func TestExecuteDataRoundTrip(t *testing.T) {
	engine := newTestEngine(t, Config{})

	data := map[string]interface{}{
		"price": 3.5,
		"count": float64(2),
		"name":  "widget",
		"ok":    true,
		"none":  nil,
		"tags":  []interface{}{"a", "b"},
		"nested": map[string]interface{}{
			"deep": []interface{}{float64(1), "two", false},
		},
	}

	result := engine.ExecuteValue(context.Background(), "return $;", data)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if !reflect.DeepEqual(result.Value, data) {
		t.Errorf("round trip mismatch:\n got %#v\nwant %#v", result.Value, data)
	}
}

func TestExecuteAbsentDataIsNull(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteValue(context.Background(), "return $ === null;", nil)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Value != true {
		t.Errorf("absent data should inject as null, got $ === null -> %#v", result.Value)
	}
}

func TestExecuteTemplateMode(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteTemplate(context.Background(), "var a = 1; var b = a + 1;", nil)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	want := map[string]interface{}{"a": float64(1), "b": float64(2)}
	if !reflect.DeepEqual(result.Variables, want) {
		t.Errorf("variables = %#v, want %#v", result.Variables, want)
	}
}

func TestExecuteTemplateModeWithData(t *testing.T) {
	engine := newTestEngine(t, Config{})

	code := "var total = $.price * $.qty; var label = $.name + ': ' + total;"
	data := map[string]interface{}{"price": 2.5, "qty": float64(4), "name": "tea"}

	result := engine.ExecuteTemplate(context.Background(), code, data)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	want := map[string]interface{}{"total": float64(10), "label": "tea: 10"}
	if !reflect.DeepEqual(result.Variables, want) {
		t.Errorf("variables = %#v, want %#v", result.Variables, want)
	}
}

func TestExecuteTemplateReservedPrefixExcluded(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteTemplate(context.Background(), "var __inker_secret = 5; var a = 1;", nil)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if _, ok := result.Variables["__inker_secret"]; ok {
		t.Error("reserved-prefix declaration must never appear in the output")
	}
	if result.Variables["a"] != float64(1) {
		t.Errorf("expected a = 1, got %#v", result.Variables["a"])
	}
}

func TestExecuteTemplateUnboundNameOmitted(t *testing.T) {
	engine := newTestEngine(t, Config{})

	// A name declared in a dead branch is still proposed by extraction;
	// the hoisted binding holds undefined at harvest time, so the typeof
	// filter drops it.
	result := engine.ExecuteTemplate(context.Background(), "var a = 1; if (false) { var b = 2; }", nil)
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Variables["a"] != float64(1) {
		t.Errorf("expected a = 1, got %#v", result.Variables["a"])
	}
	if _, ok := result.Variables["b"]; ok {
		t.Errorf("unassigned candidate should be omitted, got b = %#v", result.Variables["b"])
	}
}

func TestExecuteForbiddenKeywordRejected(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteValue(context.Background(), "return $.a.constructor;", nil)
	if result.Success {
		t.Fatal("denylisted script should fail")
	}
	if !strings.Contains(result.Error, "forbidden keyword") {
		t.Errorf("expected error to contain %q, got %q", "forbidden keyword", result.Error)
	}
	if !strings.Contains(result.Error, "constructor") {
		t.Errorf("expected error to name the token, got %q", result.Error)
	}
}

func TestExecuteTimeout(t *testing.T) {
	engine := newTestEngine(t, Config{Timeout: 100 * time.Millisecond})

	start := time.Now()
	result := engine.ExecuteValue(context.Background(), "while (true) {}", nil)
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("non-terminating script should fail")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("expected error to contain %q, got %q", "timed out", result.Error)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout enforcement took too long: %v", elapsed)
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	engine := newTestEngine(t, Config{Timeout: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result := engine.ExecuteValue(ctx, "while (true) {}", nil)
	if result.Success {
		t.Fatal("cancelled script should fail")
	}
	if !strings.Contains(result.Error, "cancelled") {
		t.Errorf("expected error to mention cancellation, got %q", result.Error)
	}
}

func TestExecuteCompileError(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteValue(context.Background(), "return {{{", nil)
	if result.Success {
		t.Fatal("malformed script should fail")
	}
	if result.Error == "" {
		t.Error("compile failure should carry a diagnostic message")
	}
	if result.Value != nil || result.Variables != nil {
		t.Error("failed result must not carry a value or variables")
	}
}

func TestExecuteRuntimeThrow(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteValue(context.Background(), "throw new Error('boom');", nil)
	if result.Success {
		t.Fatal("throwing script should fail")
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("expected error to contain the thrown message, got %q", result.Error)
	}
}

func TestExecuteUndefinedPathAccess(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result := engine.ExecuteValue(context.Background(), "return $.missing.deeper;", nil)
	if result.Success {
		t.Fatal("reading through a missing path should fail")
	}
	if result.Value != nil {
		t.Error("failed result must not carry a value")
	}
}

func TestExecuteIdempotence(t *testing.T) {
	engine := newTestEngine(t, Config{})

	req := Request{
		Code: "var total = $.price * 2;",
		Data: map[string]interface{}{"price": 1.5},
		Mode: ModeTemplate,
	}

	first := engine.Execute(context.Background(), req)
	second := engine.Execute(context.Background(), req)

	first.Duration = 0
	second.Duration = 0
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical requests should yield identical results:\n first %#v\nsecond %#v", first, second)
	}
}

func TestExecuteRejectsBeforeRealmBuild(t *testing.T) {
	var builds int64
	builder := func(cfg Config) (*Realm, error) {
		atomic.AddInt64(&builds, 1)
		return newRealm(cfg)
	}
	engine := newTestEngine(t, Config{MaxScriptLength: 10}, WithRealmBuilder(builder))

	result := engine.ExecuteValue(context.Background(), "return 1 + 1 + 1;", nil)
	if result.Success {
		t.Fatal("oversized script should fail")
	}
	if !strings.Contains(result.Error, "too large") {
		t.Errorf("expected size rejection, got %q", result.Error)
	}
	if n := atomic.LoadInt64(&builds); n != 0 {
		t.Errorf("validation rejection must not build a realm, got %d builds", n)
	}

	// The builder is used once validation passes.
	if result := engine.ExecuteValue(context.Background(), "return 1;", nil); !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if n := atomic.LoadInt64(&builds); n != 1 {
		t.Errorf("expected exactly one realm build, got %d", n)
	}
}

func TestExecuteConcurrent(t *testing.T) {
	engine := newTestEngine(t, Config{})

	const callers = 16
	results := make(chan Result, callers)
	for i := 0; i < callers; i++ {
		go func(n int) {
			results <- engine.ExecuteValue(context.Background(),
				"return $.n * 2;", map[string]interface{}{"n": float64(n)})
		}(i)
	}

	seen := make(map[float64]bool)
	for i := 0; i < callers; i++ {
		result := <-results
		if !result.Success {
			t.Fatalf("concurrent execution failed: %s", result.Error)
		}
		seen[result.Value.(float64)] = true
	}
	if len(seen) != callers {
		t.Errorf("expected %d distinct results, got %d", callers, len(seen))
	}
}
