package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"db-siard/internal/dialect"
	"db-siard/internal/failure"
	"db-siard/internal/types"
)

// ---------------------------------------------------------------------
// 1. Schema Analysis Logic
// ---------------------------------------------------------------------

// Analyze introspects one schema of db. Columns whose type cannot be
// resolved are left out of their table and reported in problems; the caller
// decides whether the job continues. err is reserved for failures that make
// the whole schema unreadable.
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect, resolver *types.Resolver, schemaName string) (*Schema, []error, error) {
	target, err := resolveSchemaName(ctx, db, d, schemaName)
	if err != nil {
		return nil, nil, err
	}

	s := &Schema{Name: target}
	// Use map for O(1) lookups, with normalized keys for case-insensitive matching (Oracle support)
	tableMap := make(map[string]*Table)
	var problems []error

	// --- Step 1: Fetch Tables ---
	if err := queryEach(ctx, db, d, d.GetTablesQuery(target), target, func(rows *sql.Rows) error {
		var name, comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		t := &Table{Name: name.String, Description: comment.String, Dependencies: []string{}}
		tableMap[strings.ToUpper(name.String)] = t
		s.AddTable(t)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to query tables: %w", err)
	}

	// --- Step 2: Fetch Columns ---
	if err := queryEach(ctx, db, d, d.GetColumnsQuery(target), target, func(rows *sql.Rows) error {
		var tName, cName, dType, cType, cLen, nPrec, nScale, isNull, cKey, extra, isUnique, comment sql.NullString
		if err := rows.Scan(&tName, &cName, &dType, &cType, &cLen, &nPrec, &nScale, &isNull, &cKey, &extra, &isUnique, &comment); err != nil {
			return fmt.Errorf("failed to scan column (table: %s): %w", tName.String, err)
		}
		if !tName.Valid || !cName.Valid {
			return nil
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			return nil
		}

		native := dialect.NativeColumn{
			DataType:   dType.String,
			ColumnType: cType.String,
			Length:     parseInt(cLen),
			Precision:  parseInt(nPrec),
			Scale:      parseInt(nScale),
		}
		resolved, err := resolver.Resolve(d.Describe(native))
		if err != nil {
			var unknown *failure.UnknownTypeError
			if errors.As(err, &unknown) {
				unknown.Schema, unknown.Table, unknown.Column = target, t.Name, cName.String
				problems = append(problems, unknown)
				return nil
			}
			return err
		}

		isAutoInc := false
		if extra.Valid {
			extraLower := strings.ToLower(extra.String)
			isAutoInc = strings.Contains(extraLower, "auto_increment") ||
				strings.Contains(extraLower, "identity") ||
				strings.Contains(extraLower, "nextval")
		}

		t.AddColumn(&Column{
			Name:       cName.String,
			Type:       resolved,
			DataType:   d.NormalizeType(dType.String),
			Length:     native.Length,
			IsNullable: isNull.String == "YES",
			IsPK:       strings.Contains(cKey.String, "PRI"),
			IsAutoInc:  isAutoInc,
			IsUnique:   strings.Contains(isUnique.String, "UNIQUE"),
			Comment:    comment.String,
			Meaning:    AnalyzeMeaning(cName.String, comment.String),
		})
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to query columns: %w", err)
	}

	// --- Step 3: Fetch Primary Keys ---
	if err := queryEach(ctx, db, d, d.GetPrimaryKeysQuery(target), target, func(rows *sql.Rows) error {
		var tName, cName sql.NullString
		if err := rows.Scan(&tName, &cName); err != nil {
			return fmt.Errorf("failed to scan primary key: %w", err)
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok || t.Column(cName.String) == nil {
			return nil
		}
		if t.PrimaryKey == nil {
			t.PrimaryKey = &PrimaryKey{Name: "pk_" + t.Name}
		}
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, t.Column(cName.String).Name)
		t.Column(cName.String).IsPK = true
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to query primary keys: %w", err)
	}

	// --- Step 4: Fetch Foreign Keys ---
	if err := queryEach(ctx, db, d, d.GetForeignKeysQuery(target), target, func(rows *sql.Rows) error {
		var tName, cConst, cName, rTable, rCol sql.NullString
		if err := rows.Scan(&tName, &cConst, &cName, &rTable, &rCol); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok || !rTable.Valid {
			return nil
		}
		// Ignore references to tables outside this schema, we cannot archive them as keys.
		ref, exists := tableMap[strings.ToUpper(rTable.String)]
		if !exists {
			return nil
		}
		fk := t.foreignKey(cConst.String)
		if fk == nil {
			fk = &ForeignKey{Name: cConst.String, RefSchema: target, RefTable: ref.Name}
			t.ForeignKeys = append(t.ForeignKeys, fk)
			if ref != t && !contains(t.Dependencies, ref.Name) {
				t.Dependencies = append(t.Dependencies, ref.Name)
			}
		}
		fk.Columns = append(fk.Columns, cName.String)
		fk.RefColumns = append(fk.RefColumns, rCol.String)
		return nil
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}

	return s, problems, nil
}

func resolveSchemaName(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName string) (string, error) {
	if schemaName == "" && d.CurrentSchemaQuery() != "" {
		var current sql.NullString
		if err := db.QueryRowContext(ctx, d.CurrentSchemaQuery()).Scan(&current); err != nil {
			return "", failure.Operation("current schema", d.NormalizeError(err))
		}
		schemaName = current.String
	}
	return d.GetSchemaName(schemaName), nil
}

// queryEach runs query with the schema argument and calls fn for every row.
func queryEach(ctx context.Context, db *sql.DB, d dialect.Dialect, query, schema string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, schema)
	if err != nil {
		return failure.Operation("introspect", d.NormalizeError(err))
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return failure.Operation("introspect", d.NormalizeError(err))
	}
	return nil
}

// parseInt handles drivers that report sizes as decimals ("10.0").
func parseInt(v sql.NullString) int {
	if !v.Valid || v.String == "" {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(v.String, "%d", &n); err == nil {
		return n
	}
	var f float64
	if _, err := fmt.Sscanf(v.String, "%f", &f); err == nil {
		return int(f)
	}
	return 0
}

func (t *Table) foreignKey(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return fk
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// 2. Sorting Algorithm (Topological / Greedy)
// ---------------------------------------------------------------------

// SortTablesByFKCount sorts tables by dependency order.
// It handles circular dependencies by using a scoring system.
func SortTablesByFKCount(tables []*Table) []*Table {
	var sorted []*Table
	processed := make(map[string]bool)

	// Keep looping until all tables are processed
	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}

			allDepsProcessed := true
			for _, depName := range t.Dependencies {
				if !processed[depName] {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}

		// Pass 2: If no table added, we have a cycle. Break it using heuristic score.
		if !added {
			var bestTable *Table
			bestScore := -999999

			for _, t := range tables {
				if processed[t.Name] {
					continue
				}

				// Penalty: unprocessed FKs. Bonus: taking part in a cycle.
				score := 0
				unprocessedDeps := 0
				for _, dep := range t.Dependencies {
					if !processed[dep] {
						unprocessedDeps++
					}
				}
				score -= (unprocessedDeps * 100)

				if inCycle(t, tables, processed) {
					score += 500
				}

				// Tie-breaker: Name (Deterministic)
				if score > bestScore {
					bestScore = score
					bestTable = t
				} else if score == bestScore {
					if bestTable == nil || t.Name > bestTable.Name {
						bestTable = t
					}
				}
			}

			if bestTable == nil {
				slog.Error("deadlock in table ordering, remaining tables cannot be sorted")
				break
			}
			sorted = append(sorted, bestTable)
			processed[bestTable.Name] = true
			slog.Debug("breaking circular dependency", "table", bestTable.Name, "score", bestScore)
		}
	}

	return sorted
}

// inCycle reports whether one of t's pending dependencies refers back to t.
func inCycle(t *Table, tables []*Table, processed map[string]bool) bool {
	for _, depName := range t.Dependencies {
		if processed[depName] {
			continue
		}
		for _, cand := range tables {
			if cand.Name == depName {
				if contains(cand.Dependencies, t.Name) {
					return true
				}
				break
			}
		}
	}
	return false
}
