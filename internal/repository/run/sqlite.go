package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/market-harvester/internal/apperror"
	domain "github.com/ahmethakanbesel/market-harvester/internal/run"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `SELECT id, trigger, status, max_rows, symbols_total,
	symbols_harvested, error, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.Run, error) {
	var (
		r                 domain.Run
		trigger, status   string
		startedStr        string
		dbErr, finishedNS sql.NullString
	)
	if err := s.Scan(
		&r.ID, &trigger, &status, &r.MaxRows, &r.SymbolsTotal,
		&r.SymbolsHarvested, &dbErr, &startedStr, &finishedNS,
	); err != nil {
		return r, err
	}

	r.Trigger = domain.Trigger(trigger)
	r.Status = domain.Status(status)
	if dbErr.Valid {
		r.Error = dbErr.String
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, startedStr)
	if finishedNS.Valid {
		if t, err := time.Parse(time.RFC3339, finishedNS.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return r, nil
}

func (r *Repository) Create(ctx context.Context, run *domain.Run) error {
	const query = `INSERT INTO runs (trigger, status, max_rows, started_at)
		VALUES (?, ?, ?, ?)`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, query,
		string(run.Trigger), string(run.Status), run.MaxRows,
		run.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	run.ID, _ = res.LastInsertId()
	return nil
}

func (r *Repository) Update(ctx context.Context, run *domain.Run) error {
	const query = `UPDATE runs SET status = ?, symbols_total = ?, symbols_harvested = ?,
		error = ?, finished_at = ?
		WHERE id = ?`

	var dbErr, finished sql.NullString
	if run.Error != "" {
		dbErr = sql.NullString{String: run.Error, Valid: true}
	}
	if run.FinishedAt != nil {
		finished = sql.NullString{String: run.FinishedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		string(run.Status), run.SymbolsTotal, run.SymbolsHarvested,
		dbErr, finished, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.New(apperror.NotFound, "run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

func (r *Repository) List(ctx context.Context, status domain.Status, limit int) ([]domain.Run, error) {
	query := selectColumns + " WHERE 1=1"

	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *Repository) FailStale(ctx context.Context, reason string) (int64, error) {
	const query = `UPDATE runs SET status = 'failed', error = ?,
		finished_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query, reason)
	if err != nil {
		return 0, fmt.Errorf("fail stale runs: %w", err)
	}

	return res.RowsAffected()
}
