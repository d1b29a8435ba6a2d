// Package db provides thin database abstractions over database/sql so the
// repositories can run against MySQL (assessment store) or PostgreSQL
// (query-harness target) without caring which driver backs them.
package db

import "context"

// Database is the unified interface for relational database access.
type Database interface {
	Querier

	// Transaction runs fn inside a transaction, committing on nil return
	// and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// Ping verifies the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the database connection pool
	Close() error
}

// Querier abstracts query operations shared by databases and transactions.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Transaction represents an in-progress database transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Rows is the result of a multi-row query.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	Close() error
	Err() error
}

// Row is the result of a single-row query.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// GetQuerier returns the transaction if provided, otherwise the database.
func GetQuerier(database Database, tx Transaction) Querier {
	if tx != nil {
		return tx
	}
	return database
}
