package worker

import "fmt"

// Config tunes the execution worker.
type Config struct {
	// Subject is the NATS subject execution requests arrive on.
	Subject string `json:"subject,omitempty"`

	// Queue is the queue group name; workers in the same group share load.
	Queue string `json:"queue,omitempty"`

	// NumWorkers is the number of concurrent handler goroutines.
	NumWorkers int `json:"num_workers,omitempty"`

	// PendingBuffer is the channel buffer between the subscription and the
	// handler goroutines.
	PendingBuffer int `json:"pending_buffer,omitempty"`

	// MaxInlineResult is the largest serialized result carried inline in a
	// reply. Larger results are offloaded to blob storage when a blob
	// client is configured.
	MaxInlineResult int `json:"max_inline_result,omitempty"`
}

// DefaultConfig returns the worker defaults.
func DefaultConfig() Config {
	return Config{
		Subject:         "widget.execute",
		Queue:           "inker-workers",
		NumWorkers:      4,
		PendingBuffer:   64,
		MaxInlineResult: 1 << 20,
	}
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Subject == "" {
		c.Subject = def.Subject
	}
	if c.Queue == "" {
		c.Queue = def.Queue
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = def.NumWorkers
	}
	if c.PendingBuffer == 0 {
		c.PendingBuffer = def.PendingBuffer
	}
	if c.MaxInlineResult == 0 {
		c.MaxInlineResult = def.MaxInlineResult
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if c.Queue == "" {
		return fmt.Errorf("queue is required")
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be greater than 0")
	}
	if c.PendingBuffer <= 0 {
		return fmt.Errorf("pending_buffer must be greater than 0")
	}
	if c.MaxInlineResult <= 0 {
		return fmt.Errorf("max_inline_result must be greater than 0")
	}
	return nil
}
