package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors. All are caller-correctable precondition failures; the
// engine performs no partial mutation before returning one.
var (
	ErrDuplicateNode = errors.New("node already exists")
	ErrUnknownNode   = errors.New("unknown node")
	ErrCycle         = errors.New("dependency cycle")
	ErrDuplicateEdge = errors.New("dependency already exists")
	ErrEdgeNotFound  = errors.New("dependency not found")
	ErrNotATask      = errors.New("node is not a task")
	ErrNotPlannable  = errors.New("task is not plannable")
)

// GraphError provides structured error information for graph operations.
type GraphError struct {
	Op      string // Operation that failed (e.g. "AddDependency", "Claim")
	NodeID  string // Node the operation targeted (if applicable)
	Context string // Additional context (e.g. the other edge endpoint)
	Cause   error  // Underlying sentinel
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.NodeID != "" {
		if e.Context != "" {
			return fmt.Sprintf("%s %q (%s): %v", e.Op, e.NodeID, e.Context, e.Cause)
		}
		return fmt.Sprintf("%s %q: %v", e.Op, e.NodeID, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

func opError(op, nodeID string, cause error) error {
	return &GraphError{Op: op, NodeID: nodeID, Cause: cause}
}

func opErrorf(op, nodeID string, cause error, format string, args ...any) error {
	return &GraphError{Op: op, NodeID: nodeID, Context: fmt.Sprintf(format, args...), Cause: cause}
}
