package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const (
	tablePrefix = "flower_"
)

type PostgresStore struct {
	db  *sql.DB
	ctx context.Context
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:  db,
		ctx: ctx,
	}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	migrations := []string{
		// Price observations
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %sobservations (
			id SERIAL PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			price_text TEXT NOT NULL,
			price NUMERIC NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL
		)`, tablePrefix),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %sobservations_slug_idx ON %sobservations (slug)`,
			tablePrefix, tablePrefix),

		// Check runs
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %scheck_runs (
			id SERIAL PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			products INTEGER NOT NULL,
			problems TEXT NOT NULL
		)`, tablePrefix),
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(s.ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) AddObservation(o Observation) error {
	query := fmt.Sprintf(`
		INSERT INTO %sobservations (slug, name, category, price_text, price, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tablePrefix)
	_, err := s.db.ExecContext(s.ctx, query, o.Slug, o.Name, o.Category, o.PriceText, o.Price, o.At)
	return err
}

func (s *PostgresStore) GetObservations(slug string) ([]Observation, error) {
	query := fmt.Sprintf(`
		SELECT slug, name, category, price_text, price, observed_at FROM (
			SELECT * FROM %sobservations WHERE slug = $1 ORDER BY id DESC LIMIT $2
		) latest ORDER BY id ASC
	`, tablePrefix)

	rows, err := s.db.QueryContext(s.ctx, query, slug, historyLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint: errcheck

	observations := []Observation{}
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.Slug, &o.Name, &o.Category, &o.PriceText, &o.Price, &o.At); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}

	return observations, rows.Err()
}

func (s *PostgresStore) GetLatestObservation(slug string) (Observation, error) {
	query := fmt.Sprintf(`
		SELECT slug, name, category, price_text, price, observed_at
		FROM %sobservations WHERE slug = $1 ORDER BY id DESC LIMIT 1
	`, tablePrefix)

	var o Observation
	err := s.db.QueryRowContext(s.ctx, query, slug).Scan(&o.Slug, &o.Name, &o.Category, &o.PriceText, &o.Price, &o.At)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, ErrNotFound
	}

	return o, err
}

func (s *PostgresStore) AddCheckRun(run CheckRun) error {
	problems, err := json.Marshal(run.Problems)
	if err != nil {
		return fmt.Errorf("failed to marshal problems: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %scheck_runs (started_at, duration_ms, products, problems)
		VALUES ($1, $2, $3, $4)
	`, tablePrefix)
	_, err = s.db.ExecContext(s.ctx, query, run.StartedAt, run.Duration.Milliseconds(), run.Products, string(problems))
	return err
}

func (s *PostgresStore) GetCheckRuns() ([]CheckRun, error) {
	query := fmt.Sprintf(`
		SELECT started_at, duration_ms, products, problems FROM (
			SELECT * FROM %scheck_runs ORDER BY id DESC LIMIT $1
		) latest ORDER BY id ASC
	`, tablePrefix)

	rows, err := s.db.QueryContext(s.ctx, query, checkRunsLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint: errcheck

	runs := []CheckRun{}
	for rows.Next() {
		var (
			run        CheckRun
			durationMs int64
			problems   string
		)
		if err := rows.Scan(&run.StartedAt, &durationMs, &run.Products, &problems); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(problems), &run.Problems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal problems: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
