package xcom

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxRuns = 128

// Memory is an in-process Store. Only the maxRuns most recently touched runs
// are kept; older ones are evicted whole.
type Memory struct {
	mu   sync.Mutex
	runs *lru.Cache[string, map[string]json.RawMessage]
}

func NewMemory(maxRuns int) (*Memory, error) {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	runs, err := lru.New[string, map[string]json.RawMessage](maxRuns)
	if err != nil {
		return nil, fmt.Errorf("new run cache: %w", err)
	}
	return &Memory{runs: runs}, nil
}

func entryKey(ref Ref) string {
	return fmt.Sprintf("%s\x00%d\x00%s", ref.TaskID, ref.MapIndex, ref.Key)
}

func (m *Memory) Push(ctx context.Context, ref Ref, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.runs.Get(ref.RunID)
	if !ok {
		entries = make(map[string]json.RawMessage)
		m.runs.Add(ref.RunID, entries)
	}
	entries[entryKey(ref)] = raw
	return nil
}

func (m *Memory) Pull(ctx context.Context, ref Ref, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	var (
		raw   json.RawMessage
		found bool
	)
	if entries, ok := m.runs.Get(ref.RunID); ok {
		raw, found = entries[entryKey(ref)]
	}
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context, runID string) error {
	m.mu.Lock()
	m.runs.Remove(runID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Runs reports how many run scopes are held.
func (m *Memory) Runs() int { return m.runs.Len() }
