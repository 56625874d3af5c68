package dag

import (
	"context"
	"time"

	"github.com/humblenginr/astros_dag/xcom"
)

// Artifacts maps an upstream task ID to the value it returned.
type Artifacts map[string]any

type Task interface {
	ID() string
	Deps() []string
	Run(ctx context.Context, ti *TaskInstance, in Artifacts) (any, error)
	MaxRetries() uint64
	Timeout() time.Duration
}

// MappedTask runs once per element of the slice returned by MapOver().
// Each instance sees that element in place of the whole slice.
type MappedTask interface {
	Task
	MapOver() string
}

// TaskInstance is one execution of one task within a run.
type TaskInstance struct {
	RunID    string
	TaskID   string
	MapIndex int // -1 unless mapped
	Try      int
	XCom     xcom.ResultSink
}

type State int

const (
	Pending State = iota
	Running
	Success
	Failed
	UpstreamFailed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case UpstreamFailed:
		return "upstream_failed"
	}
	return "unknown"
}

type RunResult struct {
	RunID     string
	States    map[string]State
	Artifacts Artifacts
}
