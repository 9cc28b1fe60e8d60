package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/randalmurphal/docrewind/internal/db/driver"
)

// HistorySchema is the migration set for the history database.
const HistorySchema = "history"

// TxOps provides database operations within a transaction.
// The context is stored and used for all operations, enabling cancellation
// and timeout propagation through the entire transaction.
type TxOps struct {
	tx  driver.Tx
	ctx context.Context
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, query, args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, query, args...)
}

// ProjectDB provides operations on the history database.
type ProjectDB struct {
	*DB
}

// OpenProject opens the SQLite history database at path and migrates it.
func OpenProject(ctx context.Context, path string) (*ProjectDB, error) {
	return OpenProjectWithDialect(ctx, path, driver.DialectSQLite)
}

// OpenProjectInMemory opens a migrated in-memory history database.
func OpenProjectInMemory() (*ProjectDB, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	return migrateProject(context.Background(), db)
}

// OpenProjectWithDialect opens the history database with a specific dialect.
func OpenProjectWithDialect(ctx context.Context, dsn string, dialect driver.Dialect) (*ProjectDB, error) {
	db, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}
	return migrateProject(ctx, db)
}

func migrateProject(ctx context.Context, db *DB) (*ProjectDB, error) {
	if err := db.Migrate(ctx, HistorySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &ProjectDB{DB: db}, nil
}

// RunInTx executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (p *ProjectDB) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txOps := &TxOps{
		tx:  tx,
		ctx: ctx,
	}

	if err := fn(txOps); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
