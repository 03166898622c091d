package validate_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/content"
	"db-siard/internal/siard/metadata"
	"db-siard/internal/siard/write"
	"db-siard/internal/types"
	"db-siard/internal/validate"

	"github.com/spf13/afero"
)

var journalMu sync.Mutex

type fake struct {
	outcome  validate.Outcome
	ran      *[]string
	name     string
	cleaned  *[]string
	setupErr error
}

func (f *fake) Setup(*validate.Env) error { return f.setupErr }

func (f *fake) Validate(context.Context) (validate.Outcome, error) {
	journalMu.Lock()
	defer journalMu.Unlock()
	*f.ran = append(*f.ran, f.name)
	return f.outcome, nil
}

func (f *fake) Clean() {
	journalMu.Lock()
	defer journalMu.Unlock()
	*f.cleaned = append(*f.cleaned, f.name)
}

func registry(t *testing.T, ran, cleaned *[]string, outcomes map[string]validate.Outcome) *validate.Registry {
	t.Helper()
	r := validate.NewRegistry()
	links := [][2]string{{"A", "B"}, {"B", "C"}, {"C", ""}}
	for i, l := range links {
		name := l[0]
		o, ok := outcomes[name]
		if !ok {
			o = validate.Outcome{Passed: true}
		}
		err := r.Register(validate.Factory{
			Name:  name,
			Next:  l[1],
			First: i == 0,
			Build: func(validate.Options) validate.Component {
				return &fake{outcome: o, ran: ran, cleaned: cleaned, name: name}
			},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func statuses(r *validate.Report) string {
	var parts []string
	for _, c := range r.Components {
		parts = append(parts, c.Name+"="+string(c.Status))
	}
	return strings.Join(parts, ",")
}

func TestRun_DisabledComponentIsSkipped(t *testing.T) {
	var ran, cleaned []string
	opts := validate.Options{
		Registry: registry(t, &ran, &cleaned, nil),
		Disabled: map[string]bool{"B": true},
	}
	report, err := validate.Run(context.Background(), afero.NewMemMapFs(), "/x.siard", opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := statuses(report); got != "A=passed,B=skipped,C=passed" {
		t.Errorf("Expected A passed, B skipped, C passed, got %s", got)
	}
	if strings.Join(ran, ",") != "A,C" || strings.Join(cleaned, ",") != "A,C" {
		t.Errorf("Expected A and C to run and clean, got ran=%v cleaned=%v", ran, cleaned)
	}
	if !report.Passed {
		t.Error("Expected aggregate pass")
	}
}

func TestRun_FailedSetupStillCleans(t *testing.T) {
	var ran, cleaned []string
	r := validate.NewRegistry()
	err := r.Register(validate.Factory{
		Name:  "A",
		First: true,
		Build: func(validate.Options) validate.Component {
			return &fake{name: "A", ran: &ran, cleaned: &cleaned, setupErr: errors.New("setup broke")}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	report, err := validate.Run(context.Background(), afero.NewMemMapFs(), "/x.siard", validate.Options{Registry: r})
	if err != nil {
		t.Fatal(err)
	}
	if got := statuses(report); got != "A=error" {
		t.Errorf("Expected A to report an error, got %s", got)
	}
	if len(ran) != 0 {
		t.Errorf("Expected Validate not to run after failed Setup, got %v", ran)
	}
	if len(cleaned) != 1 {
		t.Errorf("Expected Clean exactly once after failed Setup, got %d", len(cleaned))
	}
}

func TestRun_FatalFailureHaltsChain(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		var ran, cleaned []string
		outcomes := map[string]validate.Outcome{
			"A": {Passed: false, Fatal: true, Diagnostics: []validate.Diagnostic{{Requirement: "X", Message: "broken"}}},
		}
		opts := validate.Options{Registry: registry(t, &ran, &cleaned, outcomes), Parallel: parallel}
		report, err := validate.Run(context.Background(), afero.NewMemMapFs(), "/x.siard", opts)
		if err != nil {
			t.Fatal(err)
		}
		if got := statuses(report); got != "A=failed,B=not-run,C=not-run" {
			t.Errorf("parallel=%v: Expected halt after A, got %s", parallel, got)
		}
		if !report.Halted || !strings.Contains(report.HaltReason, "broken") || report.Passed {
			t.Errorf("parallel=%v: Expected halted failed report, got %+v", parallel, report)
		}
	}
}

func TestRun_NonFatalFailureContinues(t *testing.T) {
	var ran, cleaned []string
	outcomes := map[string]validate.Outcome{"B": {Passed: false}}
	report, _ := validate.Run(context.Background(), afero.NewMemMapFs(), "/x.siard",
		validate.Options{Registry: registry(t, &ran, &cleaned, outcomes)})
	if got := statuses(report); got != "A=passed,B=failed,C=passed" {
		t.Errorf("Expected chain to continue, got %s", got)
	}
	if report.Passed || report.Halted {
		t.Errorf("Expected failed but not halted, got %+v", report)
	}
}

func TestChain_ConfigurationErrors(t *testing.T) {
	build := func(validate.Options) validate.Component { return nil }
	tests := []struct {
		name      string
		factories []validate.Factory
	}{
		{"no first", []validate.Factory{{Name: "A", Build: build}}},
		{"two first", []validate.Factory{{Name: "A", First: true, Build: build}, {Name: "B", First: true, Build: build}}},
		{"missing next", []validate.Factory{{Name: "A", First: true, Next: "Z", Build: build}}},
		{"cycle", []validate.Factory{{Name: "A", First: true, Next: "B", Build: build}, {Name: "B", Next: "A", Build: build}}},
		{"orphan", []validate.Factory{{Name: "A", First: true, Build: build}, {Name: "B", Build: build}}},
	}
	for _, tc := range tests {
		r := validate.NewRegistry()
		for _, f := range tc.factories {
			if err := r.Register(f); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := r.Chain(); !errors.Is(err, failure.ErrConfiguration) {
			t.Errorf("%s: Expected configuration error, got %v", tc.name, err)
		}
	}
	r := validate.NewRegistry()
	r.Register(validate.Factory{Name: "A", First: true, Build: build})
	if err := r.Register(validate.Factory{Name: "A", Build: build}); !errors.Is(err, failure.ErrConfiguration) {
		t.Errorf("Expected duplicate registration to fail, got %v", err)
	}
}

func TestDefault_ChainOrder(t *testing.T) {
	chain, err := validate.Default().Chain()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range chain {
		names = append(names, f.Name)
	}
	want := "zip-construction,siard-structure,metadata,table-data,date-time,structure-fidelity"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func people() (*schema.DatabaseStructure, *schema.Schema, *schema.Table) {
	db := &schema.DatabaseStructure{Name: "hr", ArchivalDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	s := &schema.Schema{Name: "main"}
	db.AddSchema(s)
	t := &schema.Table{Name: "people"}
	t.AddColumn(&schema.Column{Name: "id", Type: types.Type{Kind: types.NumericExact, Precision: 10, SQL2008: "INTEGER"}})
	t.AddColumn(&schema.Column{Name: "born", Type: types.Temporal(false, false), IsNullable: true})
	t.AddColumn(&schema.Column{Name: "cv", Type: types.CLOB(0), IsNullable: true})
	t.PrimaryKey = &schema.PrimaryKey{Name: "pk_people", Columns: []string{"id"}}
	s.AddTable(t)
	return db, s, t
}

func exportPeople(t *testing.T, fs afero.Fs, name string, tweak func(*schema.Table)) *schema.DatabaseStructure {
	t.Helper()
	db, s, tbl := people()
	z, err := write.NewZip(fs, siard.Container{Path: name})
	if err != nil {
		t.Fatal(err)
	}
	c := content.New(z, content.Options{CLOBThreshold: 4})
	c.OpenSchema(s)
	c.OpenTable(s, tbl)
	cv := "curriculum vitae"
	for i := 1; i <= 3; i++ {
		row := &schema.Row{Index: int64(i), Cells: []schema.Cell{
			schema.ScalarCell{Value: i},
			schema.ScalarCell{Value: time.Date(1990, 1, i, 0, 0, 0, 0, time.UTC)},
			schema.LOBCell{Object: &schema.LargeObject{
				Open:      func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(cv)), nil },
				Length:    -1,
				Character: true,
			}},
		}}
		if err := c.TableRow(context.Background(), row); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.CloseTable(s, tbl); err != nil {
		t.Fatal(err)
	}
	c.CloseSchema(s)
	if tweak != nil {
		tweak(tbl)
	}
	if err := metadata.NewStrategy(z, metadata.EncodeOptions{}).Write(db); err != nil {
		t.Fatal(err)
	}
	if err := z.Finalize(); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestRun_DefaultChainOnExportedArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	reference := exportPeople(t, fs, "/hr.siard", nil)

	report, err := validate.Run(context.Background(), fs, "/hr.siard", validate.Options{Reference: reference})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Passed {
		var buf bytes.Buffer
		report.WriteText(&buf)
		t.Fatalf("Expected exported archive to validate:\n%s", buf.String())
	}
	if c, _ := report.Component(validate.StructureFidelity); c.Status != validate.StatusPassed {
		t.Errorf("Expected structure fidelity to run with a reference, got %s", c.Status)
	}

	report, _ = validate.Run(context.Background(), fs, "/hr.siard", validate.Options{})
	if c, _ := report.Component(validate.StructureFidelity); c.Status != validate.StatusSkipped {
		t.Errorf("Expected structure fidelity to be skipped without a reference, got %s", c.Status)
	}
}

func TestRun_RowCountMismatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	exportPeople(t, fs, "/hr.siard", func(tbl *schema.Table) { tbl.Rows = 5 })

	report, _ := validate.Run(context.Background(), fs, "/hr.siard", validate.Options{})
	c, _ := report.Component(validate.TableData)
	if c.Status != validate.StatusFailed {
		t.Fatalf("Expected table-data to fail, got %s", c.Status)
	}
	if len(c.Diagnostics) == 0 || c.Diagnostics[0].Requirement != "T_6.2-4" {
		t.Errorf("Expected row count diagnostic, got %+v", c.Diagnostics)
	}
	if report.Halted {
		t.Error("Expected non-fatal failure to leave the chain running")
	}
}

func TestRun_NotAZip(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/junk.siard", []byte("definitely not a zip"), 0o644)

	report, err := validate.Run(context.Background(), fs, "/junk.siard", validate.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := statuses(report); !strings.HasPrefix(got, "zip-construction=failed,siard-structure=not-run") {
		t.Errorf("Expected halt at zip-construction, got %s", got)
	}
	if !report.Halted {
		t.Error("Expected halted report")
	}
}

func TestRun_BadDateIsReported(t *testing.T) {
	fs := afero.NewMemMapFs()
	db, _, _ := people()
	db.Schemas[0].Tables[0].Rows = 1
	z, _ := write.NewZip(fs, siard.Container{Path: "/hr.siard"})
	entries := map[string]string{
		"content/schema1/table1/table1.xml": `<table xmlns="http://www.admin.ch/xmlns/siard/2/schema1/table1.xsd"><row><c1>1</c1><c2>0000-13-01Z</c2></row></table>`,
		"content/schema1/table1/table1.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"/>`,
	}
	for name, body := range entries {
		w, _ := z.Open(name)
		io.WriteString(w, body)
		z.Close()
	}
	metadata.NewStrategy(z, metadata.EncodeOptions{}).Write(db)
	if err := z.Finalize(); err != nil {
		t.Fatal(err)
	}

	report, _ := validate.Run(context.Background(), fs, "/hr.siard", validate.Options{})
	c, _ := report.Component(validate.DateTime)
	if c.Status != validate.StatusFailed || len(c.Diagnostics) != 1 {
		t.Errorf("Expected one date-time finding, got %s %+v", c.Status, c.Diagnostics)
	}
}

func TestReport_Encoders(t *testing.T) {
	var ran, cleaned []string
	report, _ := validate.Run(context.Background(), afero.NewMemMapFs(), "/x.siard", validate.Options{
		Registry: registry(t, &ran, &cleaned, nil),
		Disabled: map[string]bool{"C": true},
	})
	for format, want := range map[string]string{
		"json": `"status": "skipped"`,
		"yaml": "status: skipped",
		"text": "C  skipped",
	} {
		var buf bytes.Buffer
		if err := report.Encode(&buf, format); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%s: Expected %q in\n%s", format, want, buf.String())
		}
	}
	if err := report.Encode(io.Discard, "xml"); !errors.Is(err, failure.ErrConfiguration) {
		t.Errorf("Expected unknown format to be a configuration error, got %v", err)
	}
}
