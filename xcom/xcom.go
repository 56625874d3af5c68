// Package xcom passes small values between the tasks of one DAG run.
//
// Tasks never reach a global store: the engine hands each task instance a
// ResultSink that is already bound to its run and task IDs.
package xcom

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("xcom: entry not found")

// Ref addresses one value inside a run. Instances of a mapped task each get
// their own scope through MapIndex; it is -1 for unmapped tasks.
type Ref struct {
	RunID    string
	TaskID   string
	MapIndex int
	Key      string
}

// TaskRef addresses a value pushed by an unmapped task.
func TaskRef(runID, taskID, key string) Ref {
	return Ref{RunID: runID, TaskID: taskID, MapIndex: -1, Key: key}
}

func (r Ref) String() string {
	if r.MapIndex >= 0 {
		return fmt.Sprintf("%s/%s[%d]/%s", r.RunID, r.TaskID, r.MapIndex, r.Key)
	}
	return fmt.Sprintf("%s/%s/%s", r.RunID, r.TaskID, r.Key)
}

// ResultSink is what a running task publishes through.
type ResultSink interface {
	Push(ctx context.Context, key string, value any) error
}

// Store keeps values JSON encoded; Pull decodes into dst.
type Store interface {
	Push(ctx context.Context, ref Ref, value any) error
	Pull(ctx context.Context, ref Ref, dst any) error
	Clear(ctx context.Context, runID string) error
	Close() error
}

type boundSink struct {
	store    Store
	runID    string
	taskID   string
	mapIndex int
}

// Bind scopes store to a single task instance. Pass -1 as mapIndex for an
// unmapped task.
func Bind(store Store, runID, taskID string, mapIndex int) ResultSink {
	return boundSink{store: store, runID: runID, taskID: taskID, mapIndex: mapIndex}
}

func (b boundSink) Push(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("xcom: empty key")
	}
	return b.store.Push(ctx, Ref{RunID: b.runID, TaskID: b.taskID, MapIndex: b.mapIndex, Key: key}, value)
}

// Discard drops everything pushed to it.
var Discard ResultSink = discard{}

type discard struct{}

func (discard) Push(context.Context, string, any) error { return nil }
