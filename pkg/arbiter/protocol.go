// Package arbiter serializes task claims through one long-lived process.
// The plain CLI path is load-mutate-save with an optimistic version guard;
// fleets of concurrent workers instead dial the arbiter, which owns the
// graph session and applies claims one at a time.
package arbiter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// Op names a request type.
type Op string

const (
	OpClaim Op = "claim"
	OpPlan  Op = "plan"
	OpPing  Op = "ping"
)

// Code identifies a claim rejection on the wire, so clients recover the
// engine's sentinel without parsing the error text.
type Code string

const (
	CodeUnknownNode  Code = "unknown_node"
	CodeNotATask     Code = "not_a_task"
	CodeNotPlannable Code = "not_plannable"
)

// errorCode maps an engine error to its wire code, or "" when the error
// carries no sentinel the client knows.
func errorCode(err error) Code {
	switch {
	case errors.Is(err, graph.ErrUnknownNode):
		return CodeUnknownNode
	case errors.Is(err, graph.ErrNotATask):
		return CodeNotATask
	case errors.Is(err, graph.ErrNotPlannable):
		return CodeNotPlannable
	}
	return ""
}

// codeSentinel is the inverse of errorCode on the client side.
func codeSentinel(code Code) error {
	switch code {
	case CodeUnknownNode:
		return graph.ErrUnknownNode
	case CodeNotATask:
		return graph.ErrNotATask
	case CodeNotPlannable:
		return graph.ErrNotPlannable
	}
	return nil
}

// Request is one client message.
type Request struct {
	Op     Op     `json:"op"`
	TaskID string `json:"taskId,omitempty"`
}

// Response is the arbiter's reply.
type Response struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	Code  Code         `json:"code,omitempty"`
	Event *audit.Event `json:"event,omitempty"`
	// Plannable carries task ids for OpPlan.
	Plannable []string `json:"plannable,omitempty"`
}

func encodeRequest(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return data, nil
}

func decodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

func encodeResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// A response that cannot be encoded still has to answer the req/rep
		// cycle, or the client blocks until its deadline.
		fallback, _ := json.Marshal(Response{OK: false, Error: "internal encoding error"})
		return fallback
	}
	return data
}

func decodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
