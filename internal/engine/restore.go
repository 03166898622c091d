package engine

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"db-siard/internal/dialect"
	"db-siard/internal/failure"
	"db-siard/internal/observer"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/content"
	"db-siard/internal/siard/read"
	"db-siard/internal/types"

	"github.com/shopspring/decimal"
)

type RestoreJob struct {
	DB      *sql.DB
	Dialect dialect.Dialect
	Archive *read.Archive
	// CreateTables issues CREATE TABLE for every archived table first.
	CreateTables bool
	// Clean empties the target tables before loading.
	Clean    bool
	Observer observer.Observer
	Logger   *slog.Logger
}

type loadTarget struct {
	schema *schema.Schema
	table  *schema.Table
}

// Restore loads every table of the archive into the target database inside
// one transaction, parents before children, then verifies row counts.
func Restore(ctx context.Context, job RestoreJob) ([]schema.LoadResult, error) {
	log := job.Logger
	if log == nil {
		log = slog.Default()
	}
	d := job.Dialect
	structure, err := job.Archive.Metadata()
	if err != nil {
		return nil, err
	}

	owner := make(map[*schema.Table]*schema.Schema)
	var all []*schema.Table
	for _, s := range structure.Schemas {
		for _, t := range s.Tables {
			owner[t] = s
			all = append(all, t)
		}
	}
	ordered := schema.SortTablesByFKCount(all)
	targets := make([]loadTarget, len(ordered))
	for i, t := range ordered {
		targets[i] = loadTarget{schema: owner[t], table: t}
	}

	if job.CreateTables {
		for _, tg := range targets {
			if err := createTable(ctx, job.DB, d, tg.table); err != nil {
				return nil, err
			}
			log.Debug("table created", "table", tg.table.Name)
		}
	}
	if job.Clean {
		if err := Clean(ctx, job.DB, d, ordered, log); err != nil {
			return nil, err
		}
	}

	obs := observer.OrNop(job.Observer)
	obs.OpenDatabase(structure)
	defer obs.CloseDatabase(structure)

	tx, err := job.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, failure.Operation("restore", failure.Normalize(d, err))
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()
	if err := d.BeforePump(tx); err != nil {
		log.Warn("BeforePump hook failed, continuing", "error", err)
	}

	var results []schema.LoadResult
	for _, tg := range targets {
		n, err := loadTable(ctx, tx, d, job.Archive, tg, obs)
		if err != nil {
			return nil, failure.Operation("restore "+tg.table.Name, failure.Normalize(d, err))
		}
		results = append(results, schema.LoadResult{TableName: tg.table.Name, Target: tg.table.Rows, Actual: n})
	}

	if err := d.AfterPump(tx); err != nil {
		log.Warn("AfterPump hook failed", "error", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, failure.Operation("restore", failure.Normalize(d, err))
	}
	tx = nil

	return Verify(ctx, job.DB, d, results), nil
}

func createTable(ctx context.Context, db *sql.DB, d dialect.Dialect, t *schema.Table) error {
	specs := make([]dialect.ColumnSpec, len(t.Columns))
	for i, c := range t.Columns {
		specs[i] = dialect.ColumnSpec{Name: c.Name, Type: c.Type, Nullable: c.IsNullable}
	}
	var pk []string
	if t.PrimaryKey != nil {
		pk = t.PrimaryKey.Columns
	}
	if _, err := db.ExecContext(ctx, d.CreateTableQuery(t.Name, specs, pk)); err != nil {
		return failure.Operation("create table "+t.Name, failure.Normalize(d, err))
	}
	return nil
}

func loadTable(ctx context.Context, tx *sql.Tx, d dialect.Dialect, a *read.Archive, tg loadTarget, obs observer.Observer) (int64, error) {
	t := tg.table
	hasIdentity := t.HasIdentity()
	if err := d.BeforeTable(tx, t.Name, hasIdentity); err != nil {
		return 0, err
	}
	obs.OpenTable(tg.schema, t)

	stmt, err := tx.PrepareContext(ctx, d.InsertQuery(t.Name, t.ColumnNames()))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var inserted int64
	err = a.Records(ctx, siard.At(tg.schema.Index, t.Index), func(rec read.Record) error {
		row, err := a.Row(t, rec)
		if err != nil {
			return err
		}
		args := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			if args[i], err = valueFor(col, row.Cells[i]); err != nil {
				return fmt.Errorf("row %d column %s: %w", rec.Index, col.Name, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("row %d: %w", rec.Index, err)
		}
		inserted++
		if inserted%1000 == 0 {
			obs.Rows(tg.schema, t, inserted)
		}
		return nil
	})
	if err != nil {
		return inserted, err
	}
	if err := d.AfterTable(tx, t.Name, hasIdentity); err != nil {
		return inserted, err
	}
	obs.Rows(tg.schema, t, inserted)
	obs.CloseTable(tg.schema, t)
	return inserted, nil
}

// valueFor turns an archived cell back into a driver argument.
func valueFor(col *schema.Column, c schema.Cell) (any, error) {
	switch x := c.(type) {
	case schema.NullCell:
		return nil, nil
	case schema.LOBCell:
		if x.Object == nil {
			return nil, nil
		}
		rc, err := x.Object.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		if x.Object.Character {
			return string(data), nil
		}
		return data, nil
	case schema.ScalarCell:
		return parseScalar(col.Type, x.Value)
	}
	return nil, fmt.Errorf("unsupported cell %T", c)
}

func parseScalar(t types.Type, v any) (any, error) {
	text, ok := v.(string)
	if !ok {
		return v, nil
	}
	switch t.Kind {
	case types.NumericExact:
		d, err := decimal.NewFromString(strings.TrimSpace(text))
		if err != nil {
			return nil, err
		}
		if t.Scale == 0 && d.IsInteger() && d.Abs().LessThan(decimal.NewFromInt(math.MaxInt64)) {
			return d.IntPart(), nil
		}
		return d.String(), nil
	case types.NumericApproximate:
		return parseDouble(text)
	case types.Boolean:
		return strconv.ParseBool(strings.TrimSpace(text))
	case types.DateTime:
		return parseTemporal(t, text)
	case types.Binary:
		return hex.DecodeString(strings.TrimSpace(text))
	}
	return text, nil
}

func parseDouble(text string) (float64, error) {
	switch s := strings.TrimSpace(text); s {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	default:
		return strconv.ParseFloat(s, 64)
	}
}

var temporalLayouts = map[string][]string{
	types.XSDDate:     {content.DateLayout, "2006-01-02"},
	types.XSDTime:     {"15:04:05.999999999Z", "15:04:05.999999999"},
	types.XSDDateTime: {"2006-01-02T15:04:05.999999999Z", "2006-01-02T15:04:05.999999999"},
}

func parseTemporal(t types.Type, text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	layouts := temporalLayouts[t.XSD()]
	var err error
	for _, layout := range layouts {
		var ts time.Time
		if ts, err = time.Parse(layout, text); err == nil {
			return ts.UTC(), nil
		}
	}
	if err == nil {
		err = fmt.Errorf("%q is not a %s value", text, t.XSD())
	}
	return time.Time{}, err
}

// Verify re-counts the rows of every loaded table.
func Verify(ctx context.Context, db *sql.DB, d dialect.Dialect, results []schema.LoadResult) []schema.LoadResult {
	verified := make([]schema.LoadResult, 0, len(results))
	for _, res := range results {
		var current int64
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.QuoteIdent(res.TableName)).Scan(&current)

		status := "OK"
		if err != nil {
			status = fmt.Sprintf("VERIFY_FAIL: %v", err)
		} else if current < res.Target {
			status = fmt.Sprintf("PARTIAL: %d/%d", current, res.Target)
		}
		verified = append(verified, schema.LoadResult{
			TableName: res.TableName,
			Target:    res.Target,
			Actual:    current,
			Status:    status,
			ErrorMsg:  res.ErrorMsg,
		})
	}
	return verified
}
