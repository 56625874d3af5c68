package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/humblenginr/astros_dag/astros"
	"github.com/humblenginr/astros_dag/config"
	"github.com/humblenginr/astros_dag/dag"
	"github.com/humblenginr/astros_dag/xcom"
)

const (
	GetAstronautsID = "get_astronauts"
	PrintCraftID    = "print_astronaut_craft"
)

type GetAstronautsTask struct {
	client  *astros.Client
	retries uint64
	timeout time.Duration
}

func (t GetAstronautsTask) ID() string             { return GetAstronautsID }
func (t GetAstronautsTask) Deps() []string         { return nil }
func (t GetAstronautsTask) MaxRetries() uint64     { return t.retries }
func (t GetAstronautsTask) Timeout() time.Duration { return t.timeout }
func (t GetAstronautsTask) Run(ctx context.Context, ti *dag.TaskInstance, _ dag.Artifacts) (any, error) {
	people, err := t.client.FetchAstronauts(ctx, ti.XCom)
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] %d people in space", t.ID(), len(people))
	return people, nil
}

// PrintCraftTask is mapped over the argument lists returned by
// GetAstronautsTask; each instance receives one []astros.Person.
type PrintCraftTask struct {
	out      io.Writer
	greeting string
	retries  uint64
	timeout  time.Duration
}

func (t PrintCraftTask) ID() string             { return PrintCraftID }
func (t PrintCraftTask) Deps() []string         { return []string{GetAstronautsID} }
func (t PrintCraftTask) MapOver() string        { return GetAstronautsID }
func (t PrintCraftTask) MaxRetries() uint64     { return t.retries }
func (t PrintCraftTask) Timeout() time.Duration { return t.timeout }
func (t PrintCraftTask) Run(_ context.Context, ti *dag.TaskInstance, in dag.Artifacts) (any, error) {
	args, ok := in[GetAstronautsID].([]astros.Person)
	if !ok || len(args) != 1 {
		return nil, fmt.Errorf("instance %d: want one person, got %T", ti.MapIndex, in[GetAstronautsID])
	}
	return nil, astros.PrintAstronautCraft(t.out, args[0], t.greeting)
}

func buildTasks(cfg *config.Config, out io.Writer) []dag.Task {
	client := astros.NewClient(astros.WithURL(cfg.URL), astros.WithTimeout(cfg.Timeout))
	return []dag.Task{
		GetAstronautsTask{client: client, retries: cfg.FetchRetries, timeout: cfg.TaskTimeout},
		PrintCraftTask{out: out, greeting: cfg.Greeting, retries: cfg.PrintRetries, timeout: cfg.TaskTimeout},
	}
}

// runDAG executes one run and returns the head count published by the
// fetch task.
func runDAG(ctx context.Context, cfg *config.Config, store xcom.Store, out io.Writer, runID string) (int, error) {
	engine, err := dag.NewEngine(buildTasks(cfg, out), dag.WithStore(store), dag.WithWorkers(cfg.Workers))
	if err != nil {
		return 0, err
	}
	if _, err := engine.Run(ctx, runID); err != nil {
		return 0, err
	}

	var n int
	ref := xcom.TaskRef(runID, GetAstronautsID, astros.NumberKey)
	if err := store.Pull(ctx, ref, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := xcom.NewFromEnv(ctx, cfg.XComDSN, cfg.XComMaxRuns)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := uuid.NewString()
	log.Printf("[dag] run %s starting", runID)
	n, err := runDAG(ctx, cfg, store, os.Stdout, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	log.Printf("[dag] run %s done, %s=%d", runID, astros.NumberKey, n)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}
