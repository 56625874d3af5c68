package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/humblenginr/astros_dag/astros"
	"github.com/humblenginr/astros_dag/xcom"
)

type Config struct {
	URL          string
	Timeout      time.Duration
	TaskTimeout  time.Duration
	FetchRetries uint64
	PrintRetries uint64
	Greeting     string
	Workers      int
	XComDSN      string
	XComMaxRuns  int
}

// Load reads .env (if present), the environment, then command-line flags.
// Flags win over the environment.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	timeout, err := envDuration("ASTROS_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	taskTimeout, err := envDuration("TASK_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		URL:          firstNonEmpty(strings.TrimSpace(os.Getenv("ASTROS_URL")), astros.DefaultURL),
		Timeout:      timeout,
		TaskTimeout:  taskTimeout,
		FetchRetries: uint64(envInt("FETCH_RETRIES", 0)),
		PrintRetries: uint64(envInt("PRINT_RETRIES", 0)),
		Greeting:     astros.DefaultGreeting,
		Workers:      envInt("WORKERS", 4),
		XComDSN:      strings.TrimSpace(os.Getenv("XCOM_PG_DSN")),
		XComMaxRuns:  envInt("XCOM_MAX_RUNS", xcom.DefaultMaxRuns),
	}
	if g, ok := os.LookupEnv("GREETING"); ok {
		cfg.Greeting = g
	}

	fs := flag.NewFlagSet("astros", flag.ContinueOnError)
	fs.StringVar(&cfg.URL, "url", cfg.URL, "astronaut roster endpoint")
	fs.StringVar(&cfg.Greeting, "greeting", cfg.Greeting, "greeting appended to every line")
	fs.DurationVar(&cfg.TaskTimeout, "task-timeout", cfg.TaskTimeout, "per-try task timeout, 0 for none")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "max concurrent task instances")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}

// envInt reads a non-negative int, falling back to def when unset or invalid.
func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
