// Package history は実行結果をsqliteに保存する
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/scenario"
)

// ErrNotFound は指定IDの実行が存在しないことを示す
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL UNIQUE,
	scenario        TEXT NOT NULL,
	base_url        TEXT NOT NULL,
	started_at      INTEGER NOT NULL,
	ended_at        INTEGER NOT NULL,
	peak_vus        INTEGER NOT NULL,
	iterations      INTEGER NOT NULL,
	aborted         INTEGER NOT NULL,
	http_reqs       INTEGER NOT NULL,
	http_failed     REAL NOT NULL,
	error_rate      REAL NOT NULL,
	p95_ms          REAL NOT NULL,
	p99_ms          REAL NOT NULL,
	passed          INTEGER NOT NULL,
	created         TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run は保存された1回分の実行
type Run struct {
	ID           int64          `json:"id"`
	RunID        string         `json:"run_id"`
	Scenario     string         `json:"scenario"`
	BaseURL      string         `json:"base_url"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at"`
	PeakVUs      int            `json:"peak_vus"`
	Iterations   uint64         `json:"iterations"`
	Aborted      uint64         `json:"aborted"`
	HTTPRequests uint64         `json:"http_reqs"`
	HTTPFailed   float64        `json:"http_req_failed"`
	ErrorRate    float64        `json:"errors"`
	P95          float64        `json:"p95_ms"`
	P99          float64        `json:"p99_ms"`
	Passed       bool           `json:"passed"`
	Created      map[string]int `json:"created"`
}

// Duration は実行時間を返す
func (r *Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// FromResult はシナリオ結果から保存用の Run を作る
func FromResult(result *scenario.Result) *Run {
	created := make(map[string]int, len(result.Created))
	for _, c := range result.Created {
		created[string(c.Category)] = c.Count
	}
	return &Run{
		RunID:        result.RunID,
		Scenario:     result.ScenarioName,
		BaseURL:      result.BaseURL,
		StartedAt:    result.StartTime,
		EndedAt:      result.EndTime,
		PeakVUs:      result.PeakVUs,
		Iterations:   result.Iterations.Total,
		Aborted:      result.Iterations.Aborted,
		HTTPRequests: result.HTTPRequests,
		HTTPFailed:   result.HTTPFailedRate,
		ErrorRate:    result.ErrorRate,
		P95:          result.HTTPDuration.P95,
		P99:          result.HTTPDuration.P99,
		Passed:       result.Passed(),
		Created:      created,
	}
}

// Store はsqliteの実行履歴
type Store struct {
	db *sql.DB
}

// Open は履歴データベースを開き、スキーマを作成する
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqliteは書き込みが1接続に限られる
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベースを閉じる
func (s *Store) Close() error {
	return s.db.Close()
}

// Save は実行を保存し、IDを設定する
func (s *Store) Save(ctx context.Context, run *Run) error {
	created, err := json.Marshal(run.Created)
	if err != nil {
		return fmt.Errorf("failed to encode created counts: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, scenario, base_url, started_at, ended_at, peak_vus, iterations, aborted,
		 http_reqs, http_failed, error_rate, p95_ms, p99_ms, passed, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Scenario, run.BaseURL, run.StartedAt.UnixMilli(), run.EndedAt.UnixMilli(),
		run.PeakVUs, run.Iterations, run.Aborted, run.HTTPRequests, run.HTTPFailed, run.ErrorRate,
		run.P95, run.P99, run.Passed, string(created))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

const selectRun = `
	SELECT id, run_id, scenario, base_url, started_at, ended_at, peak_vus, iterations, aborted,
	       http_reqs, http_failed, error_rate, p95_ms, p99_ms, passed, created
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run            Run
		started, ended int64
		created        string
	)
	err := row.Scan(&run.ID, &run.RunID, &run.Scenario, &run.BaseURL, &started, &ended,
		&run.PeakVUs, &run.Iterations, &run.Aborted, &run.HTTPRequests, &run.HTTPFailed,
		&run.ErrorRate, &run.P95, &run.P99, &run.Passed, &created)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	run.EndedAt = time.UnixMilli(ended)
	if err := json.Unmarshal([]byte(created), &run.Created); err != nil {
		return nil, fmt.Errorf("failed to decode created counts of %s: %w", run.RunID, err)
	}
	return &run, nil
}

// Get はIDで実行を取得する
func (s *Store) Get(ctx context.Context, id int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List は新しい順に最大limit件の実行を返す。limitが0以下なら全件
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := selectRun + ` ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreatedTotal は全実行で作成されたカテゴリの合計を返す
func (s *Store) CreatedTotal(ctx context.Context) ([]runstate.CategoryCount, error) {
	runs, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]runstate.CategoryCount, 0, len(runstate.Categories()))
	for _, c := range runstate.Categories() {
		total := 0
		for _, r := range runs {
			total += r.Created[string(c)]
		}
		out = append(out, runstate.CategoryCount{Category: c, Count: total})
	}
	return out, nil
}
