package scheduler

import (
	"fmt"

	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// Task-file statuses as they appear in synced markdown checklists.
const (
	FileStatusDone       = "DONE"
	FileStatusInProgress = "IN PROGRESS"
	FileStatusTodo       = "TODO"
)

// TaskFileStatus maps the three-valued task-file status to the internal
// status domain. Pure lookup; no graph state involved.
func TaskFileStatus(fileStatus string) (graph.Status, error) {
	switch fileStatus {
	case FileStatusDone:
		return graph.StatusValid, nil
	case FileStatusInProgress:
		return graph.StatusActive, nil
	case FileStatusTodo:
		return graph.StatusPending, nil
	}
	return "", fmt.Errorf("unknown task file status %q", fileStatus)
}
