package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humblenginr/astros_dag/config"
	"github.com/humblenginr/astros_dag/dag"
	"github.com/humblenginr/astros_dag/xcom"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := strings.Split(strings.TrimSpace(b.buf.String()), "\n")
	sort.Strings(lines)
	return lines
}

func testConfig(url string) *config.Config {
	return &config.Config{URL: url, Greeting: "Hello!", Workers: 2, XComMaxRuns: 4}
}

func TestRunDAG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number": 3, "people": [
			{"name":"A","craft":"ISS"},{"name":"B","craft":"ISS"},{"name":"C","craft":"Soyuz"}]}`))
	}))
	defer srv.Close()

	store, err := xcom.NewMemory(4)
	require.NoError(t, err)
	out := &lockedBuffer{}

	n, err := runDAG(context.Background(), testConfig(srv.URL), store, out, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{
		"A is currently in space flying on the ISS! Hello!",
		"B is currently in space flying on the ISS! Hello!",
		"C is currently in space flying on the Soyuz! Hello!",
	}, out.Lines())
}

func TestRunDAGFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, err := xcom.NewMemory(4)
	require.NoError(t, err)
	out := &lockedBuffer{}

	_, err = runDAG(context.Background(), testConfig(srv.URL), store, out, "run-1")
	require.Error(t, err)
	assert.Zero(t, out.buf.Len())

	var n int
	err = store.Pull(context.Background(), xcom.TaskRef("run-1", GetAstronautsID, "number_of_people_in_space"), &n)
	assert.ErrorIs(t, err, xcom.ErrNotFound)
}

func TestRunDAGMissingCraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number": 2, "people": [{"name":"A"},{"name":"B","craft":"ISS"}]}`))
	}))
	defer srv.Close()

	store, err := xcom.NewMemory(4)
	require.NoError(t, err)
	out := &lockedBuffer{}

	_, err = runDAG(context.Background(), testConfig(srv.URL), store, out, "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "craft")
	assert.Equal(t, []string{"B is currently in space flying on the ISS! Hello!"}, out.Lines())
}

func TestPrintCraftTaskRejectsBadArgs(t *testing.T) {
	task := PrintCraftTask{out: &lockedBuffer{}, greeting: "Hi"}
	_, err := task.Run(context.Background(), &dag.TaskInstance{MapIndex: 0}, dag.Artifacts{GetAstronautsID: "nope"})
	assert.Error(t, err)
}

func TestBuildTasksAppliesTaskTimeout(t *testing.T) {
	cfg := testConfig("http://example.test")
	cfg.TaskTimeout = 3 * time.Second

	for _, task := range buildTasks(cfg, &lockedBuffer{}) {
		assert.Equal(t, 3*time.Second, task.Timeout(), task.ID())
	}
}

func TestRunDAGTaskTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	store, err := xcom.NewMemory(4)
	require.NoError(t, err)
	cfg := testConfig(srv.URL)
	cfg.TaskTimeout = 50 * time.Millisecond

	_, err = runDAG(context.Background(), cfg, store, &lockedBuffer{}, "run-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
