package dag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/humblenginr/astros_dag/xcom"
)

type Engine struct {
	nodes   map[string]Task
	edges   map[string][]string
	order   []string
	workers int
	store   xcom.Store
	newBack func() backoff.BackOff
}

type Option func(*Engine)

func WithWorkers(n int) Option { return func(e *Engine) { e.workers = n } }

func WithStore(s xcom.Store) Option { return func(e *Engine) { e.store = s } }

// WithBackOff sets the policy between retries of a single task.
func WithBackOff(f func() backoff.BackOff) Option { return func(e *Engine) { e.newBack = f } }

func NewEngine(tasks []Task, opts ...Option) (*Engine, error) {
	e := &Engine{
		nodes:   make(map[string]Task),
		edges:   make(map[string][]string),
		workers: 1,
		newBack: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, o := range opts {
		o(e)
	}
	if e.workers <= 0 {
		e.workers = 1
	}
	if e.store == nil {
		mem, err := xcom.NewMemory(xcom.DefaultMaxRuns)
		if err != nil {
			return nil, err
		}
		e.store = mem
	}

	for _, t := range tasks {
		if _, dup := e.nodes[t.ID()]; dup {
			return nil, &GraphError{TaskID: t.ID(), Reason: "duplicate id"}
		}
		e.nodes[t.ID()] = t
		e.edges[t.ID()] = t.Deps()
		e.order = append(e.order, t.ID())
	}
	for _, id := range e.order {
		for _, d := range e.edges[id] {
			if _, ok := e.nodes[d]; !ok {
				return nil, &GraphError{TaskID: id, Reason: fmt.Sprintf("unknown dependency %q", d)}
			}
		}
		if m, ok := e.nodes[id].(MappedTask); ok && !contains(e.edges[id], m.MapOver()) {
			return nil, &GraphError{TaskID: id, Reason: fmt.Sprintf("maps over %q which is not a dependency", m.MapOver())}
		}
	}
	if id, ok := e.findCycle(); ok {
		return nil, &GraphError{TaskID: id, Reason: "dependency cycle"}
	}
	return e, nil
}

func (e *Engine) Store() xcom.Store { return e.store }

type run struct {
	id        string
	mu        sync.RWMutex
	state     map[string]State
	errs      map[string]error
	artifacts Artifacts
}

func (r *run) setState(id string, s State) {
	r.mu.Lock()
	r.state[id] = s
	r.mu.Unlock()
}

// Run executes the graph once under runID. Tasks whose dependencies all
// succeeded are started on up to workers goroutines; a failed task marks its
// whole downstream as upstream_failed. The returned error joins every task
// failure.
func (e *Engine) Run(ctx context.Context, runID string) (*RunResult, error) {
	r := &run{
		id:        runID,
		state:     make(map[string]State, len(e.nodes)),
		errs:      make(map[string]error),
		artifacts: make(Artifacts),
	}
	for id := range e.nodes {
		r.state[id] = Pending
	}

	sem := make(chan struct{}, e.workers)
	done := make(chan string)
	inflight := 0

	for {
		for _, id := range e.ready(r) {
			r.setState(id, Running)
			inflight++
			go func(id string) {
				e.execute(ctx, r, sem, id)
				done <- id
			}(id)
		}
		if inflight == 0 {
			break
		}
		id := <-done
		inflight--

		r.mu.RLock()
		st := r.state[id]
		r.mu.RUnlock()
		if st == Failed {
			e.failDownstream(r, id)
		}
	}

	res := &RunResult{RunID: runID, States: r.state, Artifacts: r.artifacts}
	var errs []error
	for _, id := range e.order {
		if err := r.errs[id]; err != nil {
			errs = append(errs, err)
		}
	}
	return res, errors.Join(errs...)
}

func (e *Engine) execute(ctx context.Context, r *run, sem chan struct{}, id string) {
	task := e.nodes[id]

	// merge parent artifacts
	in := make(Artifacts)
	r.mu.RLock()
	for _, d := range e.edges[id] {
		in[d] = r.artifacts[d]
	}
	r.mu.RUnlock()

	var (
		out any
		err error
	)
	if m, ok := task.(MappedTask); ok {
		out, err = e.runMapped(ctx, r, sem, m, in)
	} else {
		sem <- struct{}{}
		out, err = e.attempt(ctx, r, task, -1, in)
		<-sem
	}

	if err != nil {
		log.Printf("[%s] failed: %v", id, err)
		r.mu.Lock()
		r.errs[id] = err
		r.state[id] = Failed
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.artifacts[id] = out
	r.state[id] = Success
	r.mu.Unlock()
}

func (e *Engine) runMapped(ctx context.Context, r *run, sem chan struct{}, task MappedTask, in Artifacts) (any, error) {
	src := reflect.ValueOf(in[task.MapOver()])
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return nil, &TaskError{TaskID: task.ID(), MapIndex: -1,
			Err: fmt.Errorf("cannot map over %T from %q", in[task.MapOver()], task.MapOver())}
	}
	log.Printf("[%s] expanding into %d instances", task.ID(), src.Len())

	results := make([]any, src.Len())
	errs := make([]error, src.Len())
	var wg sync.WaitGroup
	for i := 0; i < src.Len(); i++ {
		item := make(Artifacts, len(in))
		for k, v := range in {
			item[k] = v
		}
		item[task.MapOver()] = src.Index(i).Interface()

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, item Artifacts) {
			defer func() { <-sem; wg.Done() }()
			results[i], errs[i] = e.attempt(ctx, r, task, i, item)
		}(i, item)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) attempt(ctx context.Context, r *run, task Task, mapIndex int, in Artifacts) (any, error) {
	ti := &TaskInstance{
		RunID:    r.id,
		TaskID:   task.ID(),
		MapIndex: mapIndex,
		XCom:     xcom.Bind(e.store, r.id, task.ID(), mapIndex),
	}

	// retry with backoff
	var out any
	operation := func() error {
		ti.Try++
		childCtx, cancel := ctx, context.CancelFunc(func() {})
		if d := task.Timeout(); d > 0 {
			childCtx, cancel = context.WithTimeout(ctx, d)
		}
		defer cancel()

		var err error
		out, err = task.Run(childCtx, ti, in)
		if err != nil && ti.Try <= int(task.MaxRetries()) {
			log.Printf("[%s] try %d failed, retrying: %v", task.ID(), ti.Try, err)
		}
		return err
	}

	b := backoff.WithMaxRetries(e.newBack(), task.MaxRetries())
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, &TaskError{TaskID: task.ID(), MapIndex: mapIndex, Err: err}
	}
	return out, nil
}

func (e *Engine) ready(r *run) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []string
	for _, id := range e.order {
		if r.state[id] != Pending {
			continue
		}
		ok := true
		for _, d := range e.edges[id] {
			if r.state[d] != Success {
				ok = false
				break
			}
		}
		if ok {
			list = append(list, id)
		}
	}
	return list
}

func (e *Engine) failDownstream(r *run, failed string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := []string{failed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, id := range e.order {
			if r.state[id] == Pending && contains(e.edges[id], cur) {
				r.state[id] = UpstreamFailed
				log.Printf("[%s] upstream %s failed, skipping", id, cur)
				queue = append(queue, id)
			}
		}
	}
}

// findCycle does a three-colour DFS and returns a task on the first cycle.
func (e *Engine) findCycle() (string, bool) {
	const (
		white = iota
		grey
		black
	)
	colour := make(map[string]int, len(e.nodes))
	ids := append([]string(nil), e.order...)
	sort.Strings(ids)

	var visit func(string) (string, bool)
	visit = func(id string) (string, bool) {
		colour[id] = grey
		for _, d := range e.edges[id] {
			switch colour[d] {
			case grey:
				return d, true
			case white:
				if c, ok := visit(d); ok {
					return c, true
				}
			}
		}
		colour[id] = black
		return "", false
	}
	for _, id := range ids {
		if colour[id] == white {
			if c, ok := visit(id); ok {
				return c, true
			}
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
