package validate

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"db-siard/internal/observer"
	"db-siard/internal/schema"
	"db-siard/internal/siard/read"

	"github.com/spf13/afero"
)

type Options struct {
	// Disabled components are reported as skipped.
	Disabled map[string]bool
	// Parallel runs components concurrently; the report keeps chain order.
	Parallel bool
	// Reference enables the structure fidelity check.
	Reference *schema.DatabaseStructure
	// AllowedUDTs lists type names accepted besides the SQL2008 vocabulary.
	AllowedUDTs []string
	Registry    *Registry
	Observer    observer.Observer
	Logger      *slog.Logger
}

func (o Options) enabled(f Factory) bool {
	if o.Disabled[f.Name] {
		return false
	}
	return f.Enabled == nil || f.Enabled(o)
}

// Env is shared by the components of one run. The archive and its descriptor
// are opened on first use; components can run concurrently.
type Env struct {
	Fs   afero.Fs
	Path string
	Opts Options
	Log  *slog.Logger

	archiveOnce sync.Once
	archive     *read.Archive
	archiveErr  error

	declaredOnce sync.Once
	declared     *schema.DatabaseStructure
	declaredErr  error
}

func newEnv(fs afero.Fs, path string, opts Options) *Env {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Env{Fs: fs, Path: path, Opts: opts, Log: log}
}

// Archive opens the archive on first call.
func (e *Env) Archive() (*read.Archive, error) {
	e.archiveOnce.Do(func() {
		e.archive, e.archiveErr = read.Open(e.Fs, e.Path)
	})
	return e.archive, e.archiveErr
}

// Declared decodes the archive descriptor on first call.
func (e *Env) Declared() (*schema.DatabaseStructure, error) {
	e.declaredOnce.Do(func() {
		a, err := e.Archive()
		if err != nil {
			e.declaredErr = err
			return
		}
		e.declared, e.declaredErr = a.Metadata()
	})
	return e.declared, e.declaredErr
}

func (e *Env) close() {
	if e.archive != nil {
		e.archive.Close()
	}
}

// AllowedUDT reports whether name is whitelisted, ignoring case.
func (e *Env) AllowedUDT(name string) bool {
	for _, u := range e.Opts.AllowedUDTs {
		if strings.EqualFold(strings.TrimSpace(u), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// LoadUDTs reads a whitelist file: one type name per line, # starts a comment.
func LoadUDTs(fs afero.Fs, name string) ([]string, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func diag(req, path, format string, args ...any) Diagnostic {
	return Diagnostic{Requirement: req, Path: path, Message: fmt.Sprintf(format, args...)}
}
