package write

import (
	"bufio"
	"io"
	"path/filepath"

	"db-siard/internal/failure"

	"github.com/spf13/afero"
)

// Staged spools an entry to a temporary file so the container stays free for
// other entries while it is being produced.
type Staged struct {
	z    *Zip
	path string
	tmp  afero.File
	buf  *bufio.Writer
	done bool
}

func (z *Zip) Stage(path string) (*Staged, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.state != building {
		return nil, failure.Operation("stage "+path, ErrClosed)
	}
	if _, reserved := z.staged[path]; reserved || z.entries[path] {
		return nil, failure.Operation("stage "+path, ErrEntryExists)
	}
	tmp, err := afero.TempFile(z.fs, filepath.Dir(z.partial), ".stage-*")
	if err != nil {
		return nil, failure.Operation("stage "+path, err)
	}
	s := &Staged{z: z, path: path, tmp: tmp, buf: bufio.NewWriterSize(tmp, 64*1024)}
	z.staged[path] = s
	return s, nil
}

// Path is the entry name the spool will be written to.
func (s *Staged) Path() string { return s.path }

func (s *Staged) Write(p []byte) (int, error) {
	if s.done {
		return 0, failure.Operationf("write "+s.path, "staged entry is closed")
	}
	return s.buf.Write(p)
}

// Close copies the spool into its entry and removes the temporary file.
func (s *Staged) Close() error {
	if s.done {
		return failure.Operationf("close "+s.path, "staged entry is closed")
	}
	if err := s.buf.Flush(); err != nil {
		return failure.Operation("close "+s.path, err)
	}
	if _, err := s.tmp.Seek(0, io.SeekStart); err != nil {
		return failure.Operation("close "+s.path, err)
	}

	z := s.z
	z.mu.Lock()
	delete(z.staged, s.path)
	w, err := z.openLocked(s.path)
	z.mu.Unlock()
	if err != nil {
		s.discard()
		return err
	}
	if _, err := io.Copy(w, s.tmp); err != nil {
		s.discard()
		z.mu.Lock()
		if z.open == s.path {
			z.closeLocked()
		}
		z.mu.Unlock()
		return failure.Operation("close "+s.path, err)
	}
	s.discard()
	return z.Close()
}

// Discard drops the spool without writing an entry.
func (s *Staged) Discard() {
	s.z.mu.Lock()
	delete(s.z.staged, s.path)
	s.z.mu.Unlock()
	s.discard()
}

func (s *Staged) discard() {
	if s.done {
		return
	}
	s.done = true
	name := s.tmp.Name()
	s.tmp.Close()
	s.z.fs.Remove(name)
}
