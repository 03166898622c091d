package observer

import (
	"log/slog"

	"db-siard/internal/schema"
)

// Log writes milestones to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{Logger: l}
}

func (o *Log) OpenDatabase(db *schema.DatabaseStructure) {
	o.Logger.Info("export started", "database", db.Name, "schemas", len(db.Schemas), "tables", db.Tables())
}

func (o *Log) CloseDatabase(db *schema.DatabaseStructure) {
	o.Logger.Info("export finished", "database", db.Name)
}

func (o *Log) OpenSchema(s *schema.Schema) {
	o.Logger.Debug("schema opened", "schema", s.Name, "folder", s.Index)
}

func (o *Log) CloseSchema(s *schema.Schema) {
	o.Logger.Debug("schema closed", "schema", s.Name)
}

func (o *Log) OpenTable(s *schema.Schema, t *schema.Table) {
	o.Logger.Info("table opened", "schema", s.Name, "table", t.Name, "columns", len(t.Columns))
}

func (o *Log) CloseTable(s *schema.Schema, t *schema.Table) {
	o.Logger.Info("table closed", "schema", s.Name, "table", t.Name, "rows", t.Rows)
}

func (o *Log) Rows(s *schema.Schema, t *schema.Table, n int64) {
	o.Logger.Debug("rows written", "schema", s.Name, "table", t.Name, "rows", n)
}

func (o *Log) ValidationStarted(archive string, components []string) {
	o.Logger.Info("validation started", "archive", archive, "components", len(components))
}

func (o *Log) ValidationStep(component string) {
	o.Logger.Debug("validator running", "component", component)
}

func (o *Log) ValidationFinished(component, status string) {
	o.Logger.Info("validator finished", "component", component, "status", status)
}

func (o *Log) ValidationDone(passed bool) {
	o.Logger.Info("validation done", "passed", passed)
}
