// Package read opens finished archives for validation and restore.
package read

import (
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/metadata"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("entry not found")

type container struct {
	file  afero.File
	zr    *zip.Reader
	index map[string]*zip.File
}

func openContainer(fs afero.Fs, name string) (*container, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	c := &container{file: f, zr: zr, index: make(map[string]*zip.File, len(zr.File))}
	for _, zf := range zr.File {
		c.index[zf.Name] = zf
	}
	return c, nil
}

// Archive is an open archive and, when present, its external LOB container.
type Archive struct {
	Path string

	fs   afero.Fs
	main *container
	aux  *container
}

// Open reads the central directory of the archive at name. An external LOB
// container named by the descriptor is opened too when it exists.
func Open(fs afero.Fs, name string) (*Archive, error) {
	main, err := openContainer(fs, name)
	if err != nil {
		return nil, failure.Operation("open archive "+name, err)
	}
	a := &Archive{Path: name, fs: fs, main: main}

	if folder := a.lobFolder(); folder != "" {
		auxPath := filepath.Join(filepath.Dir(name), folder)
		if ok, _ := afero.Exists(fs, auxPath); ok {
			aux, err := openContainer(fs, auxPath)
			if err != nil {
				a.Close()
				return nil, failure.Operation("open lob container "+auxPath, err)
			}
			a.aux = aux
		}
	}
	return a, nil
}

func (a *Archive) lobFolder() string {
	rc, err := a.Open(siard.MetadataXML)
	if err != nil {
		return ""
	}
	defer rc.Close()
	folder, _ := metadata.LOBFolder(rc)
	return folder
}

func (a *Archive) Close() error {
	var err error
	if a.aux != nil {
		err = a.aux.file.Close()
	}
	if cerr := a.main.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Files lists the entries of the main container in directory order.
func (a *Archive) Files() []*zip.File { return a.main.zr.File }

// HasAuxiliary reports whether an external LOB container is open.
func (a *Archive) HasAuxiliary() bool { return a.aux != nil }

// Entry looks up an entry of the main container.
func (a *Archive) Entry(name string) (*zip.File, bool) {
	f, ok := a.main.index[name]
	return f, ok
}

// Open opens an entry of the main container.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.main.index[name]
	if !ok {
		return nil, failure.Operation("open "+name, ErrNotFound)
	}
	return f.Open()
}

// LOB opens an externalized object, looking in the LOB container first.
func (a *Archive) LOB(name string) (io.ReadCloser, error) {
	name = strings.TrimPrefix(name, "/")
	if a.aux != nil {
		if f, ok := a.aux.index[name]; ok {
			return f.Open()
		}
	}
	return a.Open(name)
}

// LOBSize returns the uncompressed size of an externalized object.
func (a *Archive) LOBSize(name string) (int64, bool) {
	name = strings.TrimPrefix(name, "/")
	if a.aux != nil {
		if f, ok := a.aux.index[name]; ok {
			return int64(f.UncompressedSize64), true
		}
	}
	if f, ok := a.main.index[name]; ok {
		return int64(f.UncompressedSize64), true
	}
	return 0, false
}

// Metadata decodes the archive descriptor.
func (a *Archive) Metadata() (*schema.DatabaseStructure, error) {
	rc, err := a.Open(siard.MetadataXML)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return metadata.Decode(rc)
}

// Contents lists the schemaN/tableM folders of the content tree in numeric
// order. Folders with other names are returned in bad.
func (a *Archive) Contents() (cs []siard.Content, bad []string) {
	seen := make(map[string]bool)
	for _, f := range a.main.zr.File {
		rest, ok := strings.CutPrefix(f.Name, siard.ContentDir+"/")
		if !ok {
			continue
		}
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 3 {
			continue
		}
		key := parts[0] + "/" + parts[1]
		if seen[key] {
			continue
		}
		seen[key] = true
		c, err := siard.NewContent(parts[0], parts[1])
		if err != nil {
			bad = append(bad, key)
			continue
		}
		cs = append(cs, c)
	}
	siard.SortContents(cs)
	sort.Strings(bad)
	return cs, bad
}
