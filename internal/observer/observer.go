// Package observer receives progress notifications from the export and
// validation pipelines. Callbacks run on the pipeline goroutine and must
// return quickly.
package observer

import (
	"db-siard/internal/schema"
)

type Observer interface {
	OpenDatabase(db *schema.DatabaseStructure)
	CloseDatabase(db *schema.DatabaseStructure)
	OpenSchema(s *schema.Schema)
	CloseSchema(s *schema.Schema)
	OpenTable(s *schema.Schema, t *schema.Table)
	CloseTable(s *schema.Schema, t *schema.Table)
	// Rows reports the number of rows written so far for the open table.
	Rows(s *schema.Schema, t *schema.Table, n int64)

	ValidationStarted(archive string, components []string)
	ValidationStep(component string)
	ValidationFinished(component, status string)
	ValidationDone(passed bool)
}

// Nop ignores every notification. Embed it to implement only some callbacks.
type Nop struct{}

func (Nop) OpenDatabase(*schema.DatabaseStructure)        {}
func (Nop) CloseDatabase(*schema.DatabaseStructure)       {}
func (Nop) OpenSchema(*schema.Schema)                     {}
func (Nop) CloseSchema(*schema.Schema)                    {}
func (Nop) OpenTable(*schema.Schema, *schema.Table)       {}
func (Nop) CloseTable(*schema.Schema, *schema.Table)      {}
func (Nop) Rows(*schema.Schema, *schema.Table, int64)     {}
func (Nop) ValidationStarted(string, []string)            {}
func (Nop) ValidationStep(string)                         {}
func (Nop) ValidationFinished(string, string)             {}
func (Nop) ValidationDone(bool)                           {}

// Multi fans notifications out in order.
type Multi []Observer

func (m Multi) OpenDatabase(db *schema.DatabaseStructure) {
	for _, o := range m {
		o.OpenDatabase(db)
	}
}

func (m Multi) CloseDatabase(db *schema.DatabaseStructure) {
	for _, o := range m {
		o.CloseDatabase(db)
	}
}

func (m Multi) OpenSchema(s *schema.Schema) {
	for _, o := range m {
		o.OpenSchema(s)
	}
}

func (m Multi) CloseSchema(s *schema.Schema) {
	for _, o := range m {
		o.CloseSchema(s)
	}
}

func (m Multi) OpenTable(s *schema.Schema, t *schema.Table) {
	for _, o := range m {
		o.OpenTable(s, t)
	}
}

func (m Multi) CloseTable(s *schema.Schema, t *schema.Table) {
	for _, o := range m {
		o.CloseTable(s, t)
	}
}

func (m Multi) Rows(s *schema.Schema, t *schema.Table, n int64) {
	for _, o := range m {
		o.Rows(s, t, n)
	}
}

func (m Multi) ValidationStarted(archive string, components []string) {
	for _, o := range m {
		o.ValidationStarted(archive, components)
	}
}

func (m Multi) ValidationStep(component string) {
	for _, o := range m {
		o.ValidationStep(component)
	}
}

func (m Multi) ValidationFinished(component, status string) {
	for _, o := range m {
		o.ValidationFinished(component, status)
	}
}

func (m Multi) ValidationDone(passed bool) {
	for _, o := range m {
		o.ValidationDone(passed)
	}
}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}
