package message

import (
	"encoding/json"
	"testing"

	"github.com/usetrmnl/inker/pkg/sandbox"
)

func TestNewExecuteRequest(t *testing.T) {
	req := NewExecuteRequest("w-1", "return 1;", sandbox.ModeValue, json.RawMessage(`{"a":1}`))

	if req.RequestID == "" {
		t.Error("request must get a generated ID")
	}
	if req.CreatedAt == "" {
		t.Error("request must get a timestamp")
	}
	if err := req.Validate(); err != nil {
		t.Errorf("fresh request should validate, got: %v", err)
	}
}

func TestExecuteRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  ExecuteRequest
	}{
		{
			name: "missing id",
			req:  ExecuteRequest{Script: "return 1;"},
		},
		{
			name: "missing script",
			req:  ExecuteRequest{RequestID: "r-1"},
		},
		{
			name: "data and ref together",
			req: ExecuteRequest{
				RequestID: "r-1",
				Script:    "return 1;",
				Data:      json.RawMessage(`{}`),
				DataRef:   &BlobReference{URL: "x"},
			},
		},
		{
			name: "unknown mode",
			req:  ExecuteRequest{RequestID: "r-1", Script: "return 1;", Mode: "stream"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := NewExecuteRequest("w-1", "var a = 1;", sandbox.ModeTemplate, nil)

	raw, err := req.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	parsed, err := UnmarshalRequest(raw)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed.RequestID != req.RequestID || parsed.Script != req.Script || parsed.Mode != req.Mode {
		t.Errorf("round trip mismatch: %#v", parsed)
	}
}

func TestUnmarshalReplyRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalReply([]byte("not json")); err == nil {
		t.Error("expected error for malformed reply")
	}
}
