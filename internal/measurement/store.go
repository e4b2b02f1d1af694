package measurement

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcboeker/go-duckdb"
)

// StoreOptions tunes the DuckDB connection.
type StoreOptions struct {
	MemoryLimit string
	Threads     int
	Logger      *slog.Logger
}

// Store persists datasets in a DuckDB file. An empty path opens an in-memory
// database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// DatasetInfo summarises a stored dataset.
type DatasetInfo struct {
	Name      string    `json:"name"`
	Points    int       `json:"points"`
	QMin      float64   `json:"qmin"`
	QMax      float64   `json:"qmax"`
	CreatedAt time.Time `json:"createdAt"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		name       VARCHAR PRIMARY KEY,
		points     INTEGER NOT NULL,
		qmin       DOUBLE,
		qmax       DOUBLE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS points (
		dataset VARCHAR NOT NULL,
		idx     INTEGER NOT NULL,
		q       DOUBLE NOT NULL,
		r       DOUBLE NOT NULL,
		sr      DOUBLE NOT NULL,
		sq      DOUBLE NOT NULL
	)`,
}

// NewStore opens (or creates) the database at path.
func NewStore(path string, opts StoreOptions) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "measurement-store")

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}

	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}

	logger.Info("measurement store opened", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// Save stores ds under its name, replacing any dataset of the same name.
func (s *Store) Save(ctx context.Context, ds *DataSet1D) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	start := time.Now()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `DELETE FROM points WHERE dataset = ?`, ds.Name); err != nil {
		return fmt.Errorf("clearing points of %s: %w", ds.Name, err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, ds.Name); err != nil {
		return fmt.Errorf("clearing dataset %s: %w", ds.Name, err)
	}

	qmin, qmax := ds.X[0], ds.X[0]
	for _, q := range ds.X {
		qmin, qmax = min(qmin, q), max(qmax, q)
	}
	_, err = conn.ExecContext(ctx,
		`INSERT INTO datasets (name, points, qmin, qmax, created_at) VALUES (?, ?, ?, ?, ?)`,
		ds.Name, ds.Len(), qmin, qmax, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting dataset %s: %w", ds.Name, err)
	}

	// Points go through the native Appender.
	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}
		appender, err := duckdb.NewAppenderFromConn(dConn, "", "points")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i := range ds.X {
			if err := appender.AppendRow(ds.Name, int32(i), ds.X[i], ds.Y[i], ds.YErr[i], ds.XErr[i]); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	s.logger.Debug("dataset saved", "name", ds.Name, "points", ds.Len(), "elapsed", time.Since(start))
	return nil
}

// DataSet loads a stored dataset.
func (s *Store) DataSet(ctx context.Context, name string) (*DataSet1D, error) {
	if _, err := s.Info(ctx, name); err != nil {
		return nil, err
	}
	return s.query(ctx, name,
		`SELECT q, r, sr, sq FROM points WHERE dataset = ? ORDER BY idx`, name)
}

// Range loads the points of a dataset with qmin <= q <= qmax.
func (s *Store) Range(ctx context.Context, name string, qmin, qmax float64) (*DataSet1D, error) {
	if _, err := s.Info(ctx, name); err != nil {
		return nil, err
	}
	return s.query(ctx, name,
		`SELECT q, r, sr, sq FROM points WHERE dataset = ? AND q BETWEEN ? AND ? ORDER BY idx`,
		name, qmin, qmax)
}

func (s *Store) query(ctx context.Context, name, query string, args ...interface{}) (*DataSet1D, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	defer rows.Close()

	ds := &DataSet1D{Name: name}
	for rows.Next() {
		var q, r, sr, sq float64
		if err := rows.Scan(&q, &r, &sr, &sq); err != nil {
			return nil, err
		}
		ds.X = append(ds.X, q)
		ds.Y = append(ds.Y, r)
		ds.YErr = append(ds.YErr, sr)
		ds.XErr = append(ds.XErr, sq)
	}
	return ds, rows.Err()
}

// Info returns the summary row of a dataset.
func (s *Store) Info(ctx context.Context, name string) (*DatasetInfo, error) {
	var info DatasetInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT name, points, qmin, qmax, created_at FROM datasets WHERE name = ?`, name).
		Scan(&info.Name, &info.Points, &info.QMin, &info.QMax, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns every stored dataset ordered by name.
func (s *Store) List(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, points, qmin, qmax, created_at FROM datasets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DatasetInfo{}
	for rows.Next() {
		var info DatasetInfo
		if err := rows.Scan(&info.Name, &info.Points, &info.QMin, &info.QMax, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Names lists the stored dataset names.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

// Delete removes a dataset and its points.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM points WHERE dataset = ?`, name); err != nil {
		return err
	}
	s.logger.Debug("dataset deleted", "name", name)
	return nil
}

// Close releases the database. The file is kept.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
