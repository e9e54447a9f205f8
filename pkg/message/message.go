// Package message defines the execution request and reply envelopes carried
// over NATS between widget hosts and execution workers. Envelopes are
// serialized to JSON; payloads above the inline limit travel as blob
// references instead of inline data.
package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/usetrmnl/inker/pkg/sandbox"
)

// InlineDataLimit is the largest data payload carried inline in an envelope.
// Larger payloads are offloaded to blob storage and referenced.
const InlineDataLimit = 1 << 20 // 1 MiB

// BlobReference points at offloaded payload data in blob storage.
type BlobReference struct {
	// URL is the blob location, used both for fetching and for logging.
	URL string `json:"url"`

	// SizeBytes is the original payload size.
	SizeBytes int `json:"sizeBytes"`
}

// ExecuteRequest asks a worker to run one widget script.
type ExecuteRequest struct {
	// RequestID uniquely identifies this execution for correlation.
	RequestID string `json:"requestId"`

	// WidgetID names the widget the script is attached to.
	WidgetID string `json:"widgetId,omitempty"`

	// Script is the user-authored script text.
	Script string `json:"script"`

	// Mode selects value or template execution.
	Mode sandbox.Mode `json:"mode,omitempty"`

	// Data is the inline JSON data blob bound to $ during execution.
	// Empty when DataRef is set.
	Data json.RawMessage `json:"data,omitempty"`

	// DataRef references offloaded data when the payload exceeded the
	// inline limit.
	DataRef *BlobReference `json:"dataRef,omitempty"`

	// CreatedAt is the envelope creation time in RFC 3339 format.
	CreatedAt string `json:"createdAt,omitempty"`
}

// ExecuteReply carries the outcome of one execution back to the requester.
type ExecuteReply struct {
	// RequestID echoes the request's identifier.
	RequestID string `json:"requestId"`

	// Success mirrors the engine result.
	Success bool `json:"success"`

	// Value is the inline value-mode result.
	Value interface{} `json:"value,omitempty"`

	// Variables is the inline template-mode result.
	Variables map[string]interface{} `json:"variables,omitempty"`

	// ValueRef references an offloaded result that exceeded the inline
	// limit.
	ValueRef *BlobReference `json:"valueRef,omitempty"`

	// Error is the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// DurationMs is the execution wall-clock time in milliseconds.
	DurationMs int64 `json:"durationMs,omitempty"`
}

// NewExecuteRequest builds a request envelope with a fresh request ID and
// timestamp.
func NewExecuteRequest(widgetID, script string, mode sandbox.Mode, data json.RawMessage) *ExecuteRequest {
	return &ExecuteRequest{
		RequestID: uuid.New().String(),
		WidgetID:  widgetID,
		Script:    script,
		Mode:      mode,
		Data:      data,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Validate checks that the envelope is well formed.
func (r *ExecuteRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("requestId is required")
	}
	if r.Script == "" {
		return fmt.Errorf("script is required")
	}
	if len(r.Data) > 0 && r.DataRef != nil {
		return fmt.Errorf("data and dataRef are mutually exclusive")
	}
	switch r.Mode {
	case "", sandbox.ModeValue, sandbox.ModeTemplate:
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	return nil
}

// Marshal serializes the request envelope to JSON.
func (r *ExecuteRequest) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRequest parses a request envelope from JSON.
func UnmarshalRequest(data []byte) (*ExecuteRequest, error) {
	var req ExecuteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &req, nil
}

// Marshal serializes the reply envelope to JSON.
func (r *ExecuteReply) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReply parses a reply envelope from JSON.
func UnmarshalReply(data []byte) (*ExecuteReply, error) {
	var reply ExecuteReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	return &reply, nil
}
