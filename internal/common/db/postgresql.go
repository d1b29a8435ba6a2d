package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLConfig holds the configuration for the PostgreSQL connection pool.
type PostgreSQLConfig struct {
	// DSN format: "user=evaluator password=... host=localhost port=5432 dbname=evaluation_db sslmode=disable"
	DSN                string        `yaml:"dsn"`
	MaxOpenConnections int           `yaml:"maxOpenConnections"`
	MaxIdleConnections int           `yaml:"maxIdleConnections"`
	ConnMaxLifetime    time.Duration `yaml:"connMaxLifetime"`
}

// PostgreSQL implements the Database interface using the pq driver.
// The query harness uses it to reach the disposable evaluation database.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL creates a new PostgreSQL database connection pool.
func NewPostgreSQL(cfg *PostgreSQLConfig) (*PostgreSQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("DSN cannot be empty")
	}
	if cfg.MaxOpenConnections == 0 {
		cfg.MaxOpenConnections = 5
	}
	if cfg.MaxIdleConnections == 0 {
		cfg.MaxIdleConnections = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgreSQL{db: sqlDB}, nil
}

func (p *PostgreSQL) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows: rows}, nil
}

func (p *PostgreSQL) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *PostgreSQL) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// Transaction runs fn inside a transaction.
func (p *PostgreSQL) Transaction(ctx context.Context, fn func(tx Transaction) error) error {
	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := sqlTransaction{tx: sqlTx}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	return sqlTx.Commit()
}

func (p *PostgreSQL) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
