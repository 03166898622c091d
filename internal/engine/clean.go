package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"db-siard/internal/dialect"
	"db-siard/internal/failure"
	"db-siard/internal/schema"
)

// Clean empties tables in reverse dependency order. tables must already be
// ordered parents first. Per-table failures are logged and skipped.
func Clean(ctx context.Context, db *sql.DB, d dialect.Dialect, tables []*schema.Table, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log.Info("disabling foreign key checks")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return failure.Operation("clean", failure.Normalize(d, err))
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	if err := d.BeforePump(tx); err != nil {
		log.Warn("BeforePump hook failed, continuing", "error", err)
		if _, ok := d.(*dialect.PostgresDialect); ok {
			// a failed statement poisons a postgres transaction
			tx.Rollback()
			if tx, err = db.BeginTx(ctx, nil); err != nil {
				return failure.Operation("clean", failure.Normalize(d, err))
			}
		}
	}

	_, mssql := d.(*dialect.MSSQLDialect)
	for i := len(tables) - 1; i >= 0; i-- {
		table := tables[i]
		query := d.TruncateQuery(table.Name)
		if mssql {
			// TRUNCATE is refused on referenced tables
			query = "DELETE FROM " + d.QuoteIdent(table.Name)
		}
		if _, err := tx.ExecContext(ctx, query); err != nil {
			log.Warn("failed to clean table, continuing", "table", table.Name, "error", failure.Normalize(d, err))
			continue
		}
		if mssql && table.HasIdentity() {
			reseed := fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, 0)", table.Name)
			if _, err := tx.ExecContext(ctx, reseed); err != nil {
				log.Warn("failed to reset identity, continuing", "table", table.Name, "error", err)
			}
		}
		log.Debug("table cleaned", "table", table.Name)
	}

	if err := d.AfterPump(tx); err != nil {
		log.Warn("AfterPump hook failed", "error", err)
	}
	if err := tx.Commit(); err != nil {
		return failure.Operation("clean", failure.Normalize(d, err))
	}
	tx = nil
	log.Info("tables cleaned", "count", len(tables))
	return nil
}
