package xcom

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `CREATE TABLE IF NOT EXISTS xcom (
	run_id    TEXT NOT NULL,
	task_id   TEXT NOT NULL,
	map_index INTEGER NOT NULL,
	key       TEXT NOT NULL,
	value     JSONB NOT NULL,
	PRIMARY KEY (run_id, task_id, map_index, key)
)`

// Postgres keeps xcom values in a single table so they outlive the process.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create xcom table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Push(ctx context.Context, ref Ref, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO xcom (run_id, task_id, map_index, key, value) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, task_id, map_index, key) DO UPDATE SET value = EXCLUDED.value`,
		ref.RunID, ref.TaskID, ref.MapIndex, ref.Key, string(raw))
	if err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	return nil
}

func (p *Postgres) Pull(ctx context.Context, ref Ref, dst any) error {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM xcom WHERE run_id = $1 AND task_id = $2 AND map_index = $3 AND key = $4`,
		ref.RunID, ref.TaskID, ref.MapIndex, ref.Key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", ref, err)
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context, runID string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM xcom WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear run %s: %w", runID, err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// NewFromEnv uses Postgres when dsn is set and falls back to memory if it is
// empty or unreachable.
func NewFromEnv(ctx context.Context, dsn string, maxRuns int) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewMemory(maxRuns)
	}
	pg, err := NewPostgres(ctx, dsn)
	if err != nil {
		log.Printf("[xcom] postgres unavailable, using memory: %v", err)
		return NewMemory(maxRuns)
	}
	return pg, nil
}
