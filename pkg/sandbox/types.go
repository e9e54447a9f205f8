package sandbox

import "time"

// Mode selects how a script's output is produced.
type Mode string

const (
	// ModeValue wraps the script as a function body so a top-level return
	// statement yields the call's result.
	ModeValue Mode = "value"

	// ModeTemplate executes the script and harvests its top-level variable
	// declarations into a name/value mapping for template substitution.
	ModeTemplate Mode = "template"
)

// Request describes a single script execution. It is consumed once and never
// retained by the engine.
type Request struct {
	// Code is the user-authored script text.
	Code string `json:"code"`

	// Data is an arbitrary JSON-serializable value bound to $ inside the
	// realm. A nil Data is injected as the JSON null literal.
	Data interface{} `json:"data,omitempty"`

	// Mode selects value or template execution. Defaults to ModeValue.
	Mode Mode `json:"mode,omitempty"`
}

// Result is the outcome of one execution. A Result never carries both a
// populated Value/Variables and an Error.
type Result struct {
	// Success reports whether the script ran to completion within budget.
	Success bool `json:"success"`

	// Value holds the script's return value in value mode. It may be nil
	// on success when the script returned null or nothing.
	Value interface{} `json:"value,omitempty"`

	// Variables holds the harvested top-level bindings in template mode.
	Variables map[string]interface{} `json:"variables,omitempty"`

	// Error is the failure message when Success is false. By convention it
	// contains "too large" for size rejections, "forbidden keyword" plus
	// the offending token for denylist rejections and "timed out" for
	// budget overruns; otherwise it is a compiler or runtime diagnostic.
	Error string `json:"error,omitempty"`

	// Duration is the wall-clock time spent handling the request.
	Duration time.Duration `json:"-"`
}
