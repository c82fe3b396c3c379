package tables

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"premium-rater/internal/errors"
)

// SQLite schema for a calibration database
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS asset_size (
	asset_size REAL PRIMARY KEY,
	base_rate  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS limit_retention_factor (
	amount REAL PRIMARY KEY,
	factor REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS industry_factor (
	industry TEXT PRIMARY KEY,
	factor   REAL NOT NULL
);`

// SQLiteProvider reads calibration tables from a SQLite database
type SQLiteProvider struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens the database at path
func OpenSQLite(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.TableLoad("sqlite:"+path, err)
	}
	return &SQLiteProvider{db: db, path: path}, nil
}

// NewSQLiteProvider wraps an open database
func NewSQLiteProvider(db *sql.DB, name string) *SQLiteProvider {
	return &SQLiteProvider{db: db, path: name}
}

// Source describes the provider
func (p *SQLiteProvider) Source() string {
	return "sqlite:" + p.path
}

// Files lists the paths the provider reads
func (p *SQLiteProvider) Files() []string {
	return []string{p.path}
}

// Close closes the database
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

// Tables implements Provider
func (p *SQLiteProvider) Tables(ctx context.Context) (*Tables, error) {
	var c columns
	var err error

	c.assetSizes, c.baseRates, err = p.queryCurve(ctx, "SELECT asset_size, base_rate FROM asset_size ORDER BY asset_size")
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}
	c.limits, c.factors, err = p.queryCurve(ctx, "SELECT amount, factor FROM limit_retention_factor ORDER BY amount")
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}

	rows, err := p.db.QueryContext(ctx, "SELECT industry, factor FROM industry_factor")
	if err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}
	defer rows.Close()

	c.industry = make(map[string]float64)
	for rows.Next() {
		var label string
		var factor decimal.Decimal
		if err := rows.Scan(&label, &factor); err != nil {
			return nil, errors.TableLoad(p.Source(), err)
		}
		c.industry[label] = factor.InexactFloat64()
	}
	if err := rows.Err(); err != nil {
		return nil, errors.TableLoad(p.Source(), err)
	}

	return c.build(p.Source())
}

func (p *SQLiteProvider) queryCurve(ctx context.Context, query string) ([]float64, []float64, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var xs, ys []float64
	for rows.Next() {
		var x, y decimal.Decimal
		if err := rows.Scan(&x, &y); err != nil {
			return nil, nil, err
		}
		xs = append(xs, x.InexactFloat64())
		ys = append(ys, y.InexactFloat64())
	}
	return xs, ys, rows.Err()
}

// WriteSQLite stores t in db, replacing any calibration already there
func WriteSQLite(ctx context.Context, db *sql.DB, t *Tables) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for _, table := range []string{"asset_size", "limit_retention_factor", "industry_factor"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, p := range t.AssetSize.Points() {
		if _, err := tx.ExecContext(ctx, "INSERT INTO asset_size (asset_size, base_rate) VALUES (?, ?)", p.X, p.Y); err != nil {
			return fmt.Errorf("inserting asset size %v: %w", p.X, err)
		}
	}
	for _, p := range t.LimitRetention.Points() {
		if _, err := tx.ExecContext(ctx, "INSERT INTO limit_retention_factor (amount, factor) VALUES (?, ?)", p.X, p.Y); err != nil {
			return fmt.Errorf("inserting limit factor %v: %w", p.X, err)
		}
	}
	for _, label := range t.Industries() {
		factor, _ := t.IndustryFactor(label)
		if _, err := tx.ExecContext(ctx, "INSERT INTO industry_factor (industry, factor) VALUES (?, ?)", label, factor); err != nil {
			return fmt.Errorf("inserting industry %s: %w", label, err)
		}
	}

	return tx.Commit()
}

// ExportSQLite writes t into the database file at path
func ExportSQLite(ctx context.Context, path string, t *Tables) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()
	return WriteSQLite(ctx, db, t)
}
