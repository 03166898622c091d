package observer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"db-siard/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/mattn/go-isatty"
)

// Bars draws terminal progress bars: one across tables during export and
// one across components during validation.
type Bars struct {
	Nop

	mu       sync.Mutex
	progress *uiprogress.Progress
	bar      *uiprogress.Bar
	label    string
	rows     int64
}

func NewBars() *Bars { return &Bars{} }

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ForStdout returns bars when stdout is a terminal, or fallback otherwise.
func ForStdout(fallback Observer) Observer {
	if IsTerminal(os.Stdout) {
		return Multi{NewBars(), OrNop(fallback)}
	}
	return OrNop(fallback)
}

func (o *Bars) start(total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if total <= 0 {
		total = 1
	}
	o.progress = uiprogress.New()
	o.progress.Start()
	o.bar = o.progress.AddBar(total).AppendCompleted().PrependElapsed()
	o.bar.PrependFunc(func(b *uiprogress.Bar) string {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.rows > 0 {
			return fmt.Sprintf("%-30s %8d rows", o.label, o.rows)
		}
		return fmt.Sprintf("%-30s", o.label)
	})
}

func (o *Bars) stop() {
	o.mu.Lock()
	p := o.progress
	o.progress, o.bar = nil, nil
	o.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

func (o *Bars) setLabel(label string, rows int64) {
	o.mu.Lock()
	o.label, o.rows = label, rows
	o.mu.Unlock()
}

func (o *Bars) incr() {
	o.mu.Lock()
	b := o.bar
	o.mu.Unlock()
	if b != nil {
		b.Incr()
	}
}

func (o *Bars) OpenDatabase(db *schema.DatabaseStructure) { o.start(db.Tables()) }
func (o *Bars) CloseDatabase(*schema.DatabaseStructure)   { o.stop() }

func (o *Bars) OpenTable(s *schema.Schema, t *schema.Table) {
	o.setLabel(s.Name+"."+t.Name, 0)
}

func (o *Bars) Rows(s *schema.Schema, t *schema.Table, n int64) {
	o.setLabel(s.Name+"."+t.Name, n)
}

func (o *Bars) CloseTable(*schema.Schema, *schema.Table) { o.incr() }

func (o *Bars) ValidationStarted(_ string, components []string) { o.start(len(components)) }
func (o *Bars) ValidationStep(component string)                 { o.setLabel(component, 0) }
func (o *Bars) ValidationFinished(string, string)               { o.incr() }
func (o *Bars) ValidationDone(bool)                             { o.stop() }
