package validate

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"db-siard/internal/failure"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type ComponentReport struct {
	Name        string        `json:"name" yaml:"name"`
	Status      Status        `json:"status" yaml:"status"`
	Fatal       bool          `json:"fatal,omitempty" yaml:"fatal,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

type Report struct {
	Archive    string            `json:"archive" yaml:"archive"`
	Passed     bool              `json:"passed" yaml:"passed"`
	Halted     bool              `json:"halted" yaml:"halted"`
	HaltReason string            `json:"halt_reason,omitempty" yaml:"halt_reason,omitempty"`
	Components []ComponentReport `json:"components" yaml:"components"`
}

// settle derives the aggregate verdict from the executed components.
func (r *Report) settle() {
	r.Passed = true
	for _, c := range r.Components {
		switch c.Status {
		case StatusFailed, StatusError:
			r.Passed = false
			if c.Fatal && !r.Halted {
				r.Halted = true
				r.HaltReason = fmt.Sprintf("%s failed", c.Name)
				if len(c.Diagnostics) > 0 {
					r.HaltReason += ": " + c.Diagnostics[0].Message
				}
			}
		}
	}
}

// Component returns the entry for name.
func (r *Report) Component(name string) (ComponentReport, bool) {
	for _, c := range r.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentReport{}, false
}

// Encode writes the report as text, yaml or json.
func (r *Report) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		return r.WriteText(w)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return failure.Configuration("unknown report format %q", format)
	}
}

func (r *Report) WriteText(w io.Writer) error {
	verdict := "PASSED"
	if !r.Passed {
		verdict = "FAILED"
	}
	fmt.Fprintf(w, "Validation of %s: %s\n", r.Archive, verdict)
	if r.Halted {
		fmt.Fprintf(w, "Halted: %s\n", r.HaltReason)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range r.Components {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", c.Name, c.Status, c.Error)
		for _, d := range c.Diagnostics {
			loc := ""
			if d.Path != "" {
				loc = " (" + d.Path + ")"
			}
			fmt.Fprintf(tw, "    [%s]\t%s%s\t\n", d.Requirement, d.Message, loc)
		}
	}
	return tw.Flush()
}
