package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"ghanaoil/internal/model"
	"ghanaoil/internal/store"
)

// timeLayout is fixed width so timestamps stored as text sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) SaveRun(ctx context.Context, run model.Run) (err error) {
	if run.ID == "" {
		return errors.New("sqlite: run id is required")
	}
	fields, err := json.Marshal(run.Frame.Fields)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, fields) VALUES (?, ?, ?)`,
		run.ID, createdAt.UTC().Format(timeLayout), string(fields),
	); err != nil {
		return errors.Wrap(err, "insert run")
	}

	if err = insertSeries(ctx, tx, run.ID, run.Series); err != nil {
		return err
	}
	if err = insertFrame(ctx, tx, run.ID, run.Frame); err != nil {
		return err
	}

	return tx.Commit()
}

func insertSeries(ctx context.Context, tx *sql.Tx, runID string, series []model.Series) error {
	seriesStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_series (run_id, position, source, field, granularity, resample, scale)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer seriesStmt.Close()

	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO source_observations (run_id, field, observed_at, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, field, observed_at) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for i, s := range series {
		if _, err := seriesStmt.ExecContext(ctx, runID, i, s.Source, s.Field,
			string(s.Granularity), string(s.Resample), s.Scale); err != nil {
			return errors.Wrapf(err, "insert series %s", s.Field)
		}
		for _, point := range s.Points {
			if _, err := pointStmt.ExecContext(ctx, runID, s.Field,
				point.Time.UTC().Format(timeLayout), point.Value); err != nil {
				return errors.Wrapf(err, "insert observation %s", s.Field)
			}
		}
	}
	return nil
}

func insertFrame(ctx context.Context, tx *sql.Tx, runID string, frame model.Frame) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quarterly_values (run_id, period, position, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range frame.Rows {
		for position, value := range row.Values {
			if _, err := stmt.ExecContext(ctx, runID, row.Period.String(), position, value); err != nil {
				return errors.Wrapf(err, "insert quarter %s", row.Period.Label())
			}
		}
	}
	return nil
}

func (s *Store) LatestRun(ctx context.Context) (model.Run, error) {
	var (
		run       model.Run
		createdAt string
		fields    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, fields FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&run.ID, &createdAt, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, store.ErrNoRuns
	}
	if err != nil {
		return model.Run{}, err
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return model.Run{}, errors.Wrap(err, "parse created_at")
	}
	if err := json.Unmarshal([]byte(fields), &run.Frame.Fields); err != nil {
		return model.Run{}, errors.Wrap(err, "decode fields")
	}

	if run.Series, err = s.loadSeries(ctx, run.ID); err != nil {
		return model.Run{}, err
	}
	if run.Frame.Rows, err = s.loadRows(ctx, run.ID, len(run.Frame.Fields)); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (s *Store) loadSeries(ctx context.Context, runID string) ([]model.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, field, granularity, resample, scale FROM run_series
		WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	series := make([]model.Series, 0)
	for rows.Next() {
		var (
			item                  model.Series
			granularity, resample string
		)
		if err := rows.Scan(&item.Source, &item.Field, &granularity, &resample, &item.Scale); err != nil {
			rows.Close()
			return nil, err
		}
		item.Granularity = model.PeriodType(granularity)
		item.Resample = model.Resample(resample)
		series = append(series, item)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for i := range series {
		points, err := s.loadPoints(ctx, runID, series[i].Field)
		if err != nil {
			return nil, err
		}
		series[i].Points = points
	}
	return series, nil
}

func (s *Store) loadPoints(ctx context.Context, runID, field string) ([]model.Point, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observed_at, value FROM source_observations
		WHERE run_id = ? AND field = ? ORDER BY observed_at
	`, runID, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]model.Point, 0)
	for rows.Next() {
		var (
			observedAt string
			point      model.Point
		)
		if err := rows.Scan(&observedAt, &point.Value); err != nil {
			return nil, err
		}
		if point.Time, err = time.Parse(timeLayout, observedAt); err != nil {
			return nil, errors.Wrap(err, "parse observed_at")
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

func (s *Store) loadRows(ctx context.Context, runID string, width int) ([]model.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period, position, value FROM quarterly_values
		WHERE run_id = ? ORDER BY period, position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Row, 0)
	for rows.Next() {
		var (
			period   string
			position int
			value    float64
		)
		if err := rows.Scan(&period, &position, &value); err != nil {
			return nil, err
		}
		if position < 0 || position >= width {
			return nil, errors.Newf("sqlite: position %d out of range for %d fields", position, width)
		}
		if n := len(out); n == 0 || out[n-1].Period.String() != period {
			start, err := time.Parse("2006-01-02", period)
			if err != nil {
				return nil, errors.Wrap(err, "parse period")
			}
			out = append(out, model.Row{Period: model.QuarterOf(start), Values: make([]float64, width)})
		}
		out[len(out)-1].Values[position] = value
	}
	return out, rows.Err()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			fields TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_series (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			source TEXT NOT NULL,
			field TEXT NOT NULL,
			granularity TEXT NOT NULL,
			resample TEXT NOT NULL,
			scale REAL NOT NULL,
			PRIMARY KEY (run_id, field)
		);`,
		`CREATE TABLE IF NOT EXISTS source_observations (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			field TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, field, observed_at)
		);`,
		`CREATE TABLE IF NOT EXISTS quarterly_values (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			period TEXT NOT NULL,
			position INTEGER NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, period, position)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ store.Store = (*Store)(nil)
