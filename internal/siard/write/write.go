// Package write builds archive containers. A container accepts one open entry
// at a time; entries are immutable once closed.
package write

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"db-siard/internal/failure"
	"db-siard/internal/siard"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

var (
	ErrEntryExists = errors.New("entry already exists")
	ErrNoEntry     = errors.New("no open entry")
	ErrClosed      = errors.New("container closed")
)

// Strategy is a container under construction.
type Strategy interface {
	// Open starts a new entry; a path can be opened only once.
	Open(path string) (io.Writer, error)
	// Sink returns the writer of the open entry.
	Sink() (io.Writer, error)
	// Close seals the open entry.
	Close() error
	// Stage reserves path and returns a spool that becomes the entry on Close.
	Stage(path string) (*Staged, error)
	// Finalize completes the container. It fails while an entry is open.
	Finalize() error
	// Abort discards the container. Further writes fail.
	Abort() error
	// Aborted is closed by Abort.
	Aborted() <-chan struct{}
}

type state int

const (
	building state = iota
	finalized
	aborted
)

// Zip writes a ZIP container on an afero filesystem. The archive is built
// under a .partial name and only renamed to its final path by Finalize.
type Zip struct {
	mu sync.Mutex

	fs        afero.Fs
	container siard.Container
	partial   string
	file      afero.File
	zw        *zip.Writer
	method    uint16
	now       func() time.Time

	state   state
	entries map[string]bool
	staged  map[string]*Staged
	open    string
	sink    io.Writer
	stop    chan struct{}
}

type Option func(*Zip)

// WithStore disables compression.
func WithStore() Option { return func(z *Zip) { z.method = zip.Store } }

// WithMethod selects "deflate" or "store".
func WithMethod(name string) Option {
	return func(z *Zip) {
		if strings.EqualFold(name, "store") {
			z.method = zip.Store
		}
	}
}

// WithClock sets the modification time source of new entries.
func WithClock(now func() time.Time) Option { return func(z *Zip) { z.now = now } }

// NewZip creates the staging file for c on fs.
func NewZip(fs afero.Fs, c siard.Container, opts ...Option) (*Zip, error) {
	z := &Zip{
		fs:        fs,
		container: c,
		method:    zip.Deflate,
		now:       time.Now,
		entries:   make(map[string]bool),
		staged:    make(map[string]*Staged),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(z)
	}

	if dir := filepath.Dir(c.Path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, failure.Operation("create archive", err)
		}
	}
	if exists, _ := afero.Exists(fs, c.Path); exists {
		return nil, failure.Operation("create archive", fmt.Errorf("%s: %w", c.Path, ErrEntryExists))
	}
	z.partial = fmt.Sprintf("%s.%s.partial", c.Path, uuid.NewString())
	f, err := fs.Create(z.partial)
	if err != nil {
		return nil, failure.Operation("create archive", err)
	}
	z.file = f
	z.zw = zip.NewWriter(f)
	return z, nil
}

// Container returns what this strategy is writing.
func (z *Zip) Container() siard.Container { return z.container }

func (z *Zip) Open(path string) (io.Writer, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if _, reserved := z.staged[path]; reserved {
		return nil, failure.Operation("open "+path, ErrEntryExists)
	}
	return z.openLocked(path)
}

func (z *Zip) openLocked(path string) (io.Writer, error) {
	if z.state != building {
		return nil, failure.Operation("open "+path, ErrClosed)
	}
	if z.entries[path] {
		return nil, failure.Operation("open "+path, ErrEntryExists)
	}
	if z.open != "" {
		return nil, failure.Operationf("open "+path, "entry %s is still open", z.open)
	}
	hdr := &zip.FileHeader{Name: path, Method: z.method, Modified: z.now()}
	if strings.HasSuffix(path, "/") {
		hdr.Method = zip.Store
	}
	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return nil, failure.Operation("open "+path, err)
	}
	z.entries[path] = true
	z.open = path
	z.sink = &entryWriter{z: z, path: path, w: w}
	return z.sink, nil
}

func (z *Zip) Sink() (io.Writer, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.open == "" {
		return nil, failure.Operation("sink", ErrNoEntry)
	}
	return z.sink, nil
}

func (z *Zip) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.closeLocked()
}

func (z *Zip) closeLocked() error {
	if z.open == "" {
		return failure.Operation("close", ErrNoEntry)
	}
	z.open, z.sink = "", nil
	return nil
}

// Mkdir writes a directory entry such as the version marker.
func (z *Zip) Mkdir(path string) error {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	if _, err := z.Open(path); err != nil {
		return err
	}
	return z.Close()
}

// Entries lists the entry names written so far.
func (z *Zip) Entries() []string {
	z.mu.Lock()
	defer z.mu.Unlock()
	names := make([]string, 0, len(z.entries))
	for name := range z.entries {
		names = append(names, name)
	}
	return names
}

// IsOpen reports whether an entry is currently open.
func (z *Zip) IsOpen() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.open != ""
}

func (z *Zip) Finalize() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.state != building {
		return failure.Operation("finalize", ErrClosed)
	}
	if z.open != "" {
		return failure.Operationf("finalize", "entry %s was opened but never closed", z.open)
	}
	for path := range z.staged {
		return failure.Operationf("finalize", "staged entry %s was never closed", path)
	}
	if err := z.zw.Close(); err != nil {
		return failure.Operation("finalize", err)
	}
	if err := z.file.Close(); err != nil {
		return failure.Operation("finalize", err)
	}
	if err := z.fs.Rename(z.partial, z.container.Path); err != nil {
		return failure.Operation("finalize", err)
	}
	z.state = finalized
	return nil
}

// Abort removes the partial container and any spool. It is safe to call
// more than once and after Finalize, in which case it does nothing.
func (z *Zip) Abort() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.state != building {
		return nil
	}
	z.state = aborted
	z.open, z.sink = "", nil
	close(z.stop)
	for _, s := range z.staged {
		s.discard()
	}
	z.staged = nil
	z.file.Close()
	if err := z.fs.Remove(z.partial); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		return failure.Operation("abort", err)
	}
	return nil
}

func (z *Zip) Aborted() <-chan struct{} { return z.stop }

// entryWriter refuses writes once its entry is no longer the open one.
type entryWriter struct {
	z    *Zip
	path string
	w    io.Writer
}

func (e *entryWriter) Write(p []byte) (int, error) {
	e.z.mu.Lock()
	defer e.z.mu.Unlock()
	if e.z.state != building {
		return 0, failure.Operation("write "+e.path, ErrClosed)
	}
	if e.z.open != e.path {
		return 0, failure.Operationf("write "+e.path, "entry is closed")
	}
	return e.w.Write(p)
}
