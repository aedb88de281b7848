package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Attempt is one provider call inside a pipeline run.
type Attempt struct {
	Provider string `json:"provider"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// Generation is the audit row of one pipeline run.
type Generation struct {
	ID          int64
	CreatedAt   time.Time
	RequestID   string
	Op          string
	DiagramType string
	Input       string
	Provider    string // empty when every provider failed
	Output      string
	ErrorKind   string
	Attempts    []Attempt
	LatencyMS   int64
}

// OpStats aggregates runs of one operation.
type OpStats struct {
	Op        string
	Total     int64
	Failed    int64
	Fallbacks int64 // answered by a provider other than the first attempted
	AvgMS     float64
}

type GenerationRepo struct{ DB *sql.DB }

func NewGenerationRepo(db *sql.DB) *GenerationRepo { return &GenerationRepo{DB: db} }

const generationsDDL = `
create table if not exists generations (
    id           bigserial primary key,
    created_at   timestamptz not null default now(),
    request_id   text not null default '',
    op           text not null,
    diagram_type text not null default '',
    input        text not null default '',
    provider     text not null default '',
    output       text not null default '',
    error_kind   text not null default '',
    attempts     jsonb not null default '[]'::jsonb,
    latency_ms   bigint not null default 0
);
create index if not exists generations_op_created_idx on generations (op, created_at desc);`

func (r *GenerationRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, generationsDDL)
	return err
}

// Record inserts one run.
func (r *GenerationRepo) Record(ctx context.Context, g Generation) error {
	attempts := g.Attempts
	if attempts == nil {
		attempts = []Attempt{}
	}
	js, err := json.Marshal(attempts)
	if err != nil {
		return err
	}
	const q = `
insert into generations(request_id, op, diagram_type, input, provider, output, error_kind, attempts, latency_ms)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.DB.ExecContext(ctx, q, g.RequestID, g.Op, g.DiagramType, g.Input, g.Provider, g.Output, g.ErrorKind, js, g.LatencyMS)
	return err
}

// Recent returns the latest runs, newest first. op = "" means every operation.
func (r *GenerationRepo) Recent(ctx context.Context, op string, limit int) ([]Generation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const q = `
select id, created_at, request_id, op, diagram_type, input, provider, output, error_kind, attempts, latency_ms
from generations
where ($1 = '' or op = $1)
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, op, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var (
			g  Generation
			js []byte
		)
		if err := rows.Scan(&g.ID, &g.CreatedAt, &g.RequestID, &g.Op, &g.DiagramType, &g.Input,
			&g.Provider, &g.Output, &g.ErrorKind, &js, &g.LatencyMS); err != nil {
			return nil, err
		}
		// A broken attempts column should not hide the row.
		_ = json.Unmarshal(js, &g.Attempts)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Stats aggregates runs newer than since, one row per operation.
func (r *GenerationRepo) Stats(ctx context.Context, since time.Time) ([]OpStats, error) {
	const q = `
select op,
       count(*)                                                   as total,
       count(*) filter (where provider = '')                      as failed,
       count(*) filter (where provider <> ''
                        and provider <> coalesce(attempts->0->>'provider', provider)) as fallbacks,
       coalesce(avg(latency_ms), 0)                               as avg_ms
from generations
where created_at >= $1
group by op
order by op`
	rows, err := r.DB.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpStats
	for rows.Next() {
		var s OpStats
		if err := rows.Scan(&s.Op, &s.Total, &s.Failed, &s.Fallbacks, &s.AvgMS); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
