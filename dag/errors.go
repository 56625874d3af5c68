package dag

import "fmt"

// GraphError reports a structural problem found while building the engine.
type GraphError struct {
	TaskID string
	Reason string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("dag: task %q: %s", e.TaskID, e.Reason)
}

// TaskError wraps the final error of a task after retries are exhausted.
type TaskError struct {
	TaskID   string
	MapIndex int
	Err      error
}

func (e *TaskError) Error() string {
	if e.MapIndex >= 0 {
		return fmt.Sprintf("task %s[%d]: %v", e.TaskID, e.MapIndex, e.Err)
	}
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
