package sandbox

import (
	"fmt"
	"time"
)

// Config holds the engine's read-only tuning knobs. A Config is shared freely
// across concurrent executions; nothing in it is mutated after New.
type Config struct {
	// MaxScriptLength is the size ceiling for script text, in bytes.
	MaxScriptLength int `json:"max_script_length,omitempty"`

	// Timeout is the hard wall-clock budget for a single execution,
	// covering compilation and evaluation together.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxCallStackSize caps the interpreter call stack depth so runaway
	// recursion surfaces as a RangeError instead of exhausting the host.
	MaxCallStackSize int `json:"max_call_stack_size,omitempty"`

	// ReservedPrefix marks engine-internal identifiers. Declared variables
	// carrying this prefix are never harvested in template mode, and the
	// wrapper's own bookkeeping variable lives under it.
	ReservedPrefix string `json:"reserved_prefix,omitempty"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxScriptLength:  10000,
		Timeout:          1000 * time.Millisecond,
		MaxCallStackSize: 512,
		ReservedPrefix:   "__inker_",
	}
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.MaxScriptLength == 0 {
		c.MaxScriptLength = def.MaxScriptLength
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxCallStackSize == 0 {
		c.MaxCallStackSize = def.MaxCallStackSize
	}
	if c.ReservedPrefix == "" {
		c.ReservedPrefix = def.ReservedPrefix
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.MaxScriptLength <= 0 {
		return fmt.Errorf("max_script_length must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxCallStackSize <= 0 {
		return fmt.Errorf("max_call_stack_size must be positive")
	}
	if c.ReservedPrefix == "" {
		return fmt.Errorf("reserved_prefix is required")
	}
	return nil
}
