// Package sandbox executes untrusted, user-authored data-transformation
// scripts inside per-call isolated realms. A script receives the caller's
// data as a JSON-materialized value bound to $ and either returns a single
// computed value or produces named top-level variables for template
// substitution.
//
// Every request moves through the same states: validated, realm built, data
// injected, executing, then succeeded or failed. Failure is terminal and is
// reached from validation rejection, serialization failure, compile failure,
// runtime throw or timeout; nothing is retried inside the engine and no realm
// outlives the call that created it.
package sandbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine executes scripts. It holds only read-only configuration and is safe
// for concurrent use; every execution gets its own realm, so there is no
// shared mutable state between invocations.
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	newRealm RealmBuilder
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRealmBuilder substitutes the realm construction function. Used by tests
// to count or fail realm builds.
func WithRealmBuilder(builder RealmBuilder) Option {
	return func(e *Engine) {
		if builder != nil {
			e.newRealm = builder
		}
	}
}

// New creates an Engine with the given configuration. Zero-valued fields are
// filled with defaults.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		cfg:      cfg,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("inker/sandbox"),
		newRealm: newRealm,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Execute runs one script request and returns a structured result. It never
// returns an error or panics: every failure mode is converted into a Result
// with Success false and a descriptive message.
func (e *Engine) Execute(ctx context.Context, req Request) Result {
	mode := req.Mode
	if mode == "" {
		mode = ModeValue
	}

	ctx, span := e.tracer.Start(ctx, "sandbox.Execute",
		trace.WithAttributes(
			attribute.String("script.mode", string(mode)),
			attribute.Int("script.size_bytes", len(req.Code)),
		))
	defer span.End()

	start := time.Now()
	result := e.run(ctx, req.Code, req.Data, mode)
	result.Duration = time.Since(start)

	span.SetAttributes(attribute.Int64("script.duration_ms", result.Duration.Milliseconds()))
	if result.Success {
		span.SetStatus(codes.Ok, "script executed")
		e.logger.Debug("script executed",
			zap.String("mode", string(mode)),
			zap.Duration("duration", result.Duration))
	} else {
		span.SetStatus(codes.Error, result.Error)
		e.logger.Debug("script failed",
			zap.String("mode", string(mode)),
			zap.String("error", result.Error),
			zap.Duration("duration", result.Duration))
	}

	return result
}

// ExecuteValue is a convenience wrapper for value-mode execution.
func (e *Engine) ExecuteValue(ctx context.Context, code string, data interface{}) Result {
	return e.Execute(ctx, Request{Code: code, Data: data, Mode: ModeValue})
}

// ExecuteTemplate is a convenience wrapper for template-mode execution.
func (e *Engine) ExecuteTemplate(ctx context.Context, code string, data interface{}) Result {
	return e.Execute(ctx, Request{Code: code, Data: data, Mode: ModeTemplate})
}

// run performs the validate, build, inject, execute sequence for one request.
func (e *Engine) run(ctx context.Context, code string, data interface{}, mode Mode) Result {
	if scriptErr := validateScript(code, e.cfg.MaxScriptLength); scriptErr != nil {
		return failedResult(scriptErr)
	}

	realm, err := e.newRealm(e.cfg)
	if err != nil {
		return failedResult(NewInternalError("failed to build realm: " + err.Error()))
	}

	if scriptErr := realm.inject(data); scriptErr != nil {
		return failedResult(scriptErr)
	}

	var src string
	if mode == ModeTemplate {
		names := extractDeclaredNames(code, e.cfg.ReservedPrefix)
		src = wrapTemplate(code, names, e.cfg.ReservedPrefix)
	} else {
		src = wrapValue(code)
	}

	value, scriptErr := evaluate(ctx, realm, src, e.cfg.Timeout)
	if scriptErr != nil {
		return failedResult(scriptErr)
	}

	var exported interface{}
	if value != nil {
		exported = value.Export()
	}

	if mode == ModeTemplate {
		vars, scriptErr := normalizeVariables(exported)
		if scriptErr != nil {
			return failedResult(scriptErr)
		}
		return Result{Success: true, Variables: vars}
	}

	out, scriptErr := normalizeValue(exported)
	if scriptErr != nil {
		return failedResult(scriptErr)
	}
	return Result{Success: true, Value: out}
}

func failedResult(err *ScriptError) Result {
	return Result{Success: false, Error: err.Message}
}
