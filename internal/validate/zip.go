package validate

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"db-siard/internal/siard"

	"github.com/klauspost/compress/zip"
)

var zipMagic = []byte("PK\x03\x04")

// zipConstruction checks the container itself. Every later component reads
// through it, so a failure here is fatal.
type zipConstruction struct{ base }

func (z *zipConstruction) Validate(ctx context.Context) (Outcome, error) {
	out := Outcome{Passed: true, Fatal: true}
	f, err := z.env.Fs.Open(z.env.Path)
	if err != nil {
		out.fail("G_4.1-1", z.env.Path, "archive cannot be opened: %v", err)
		return out, nil
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, zipMagic) {
		out.fail("G_4.1-1", z.env.Path, "not a ZIP file")
		return out, nil
	}
	info, err := f.Stat()
	if err != nil {
		return out, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		out.fail("G_4.1-1", z.env.Path, "unreadable ZIP directory: %v", err)
		return out, nil
	}

	for _, e := range zr.File {
		if e.Method != zip.Store && e.Method != zip.Deflate {
			out.fail("G_4.1-2", e.Name, "compression method %d is neither STORE nor DEFLATE", e.Method)
		}
		if e.Flags&0x1 != 0 {
			out.fail("G_4.1-3", e.Name, "entry is encrypted")
		}
	}
	if !strings.EqualFold(filepath.Ext(z.env.Path), siard.Extension) {
		out.fail("G_4.1-5", z.env.Path, "archive must have the %s extension", siard.Extension)
	}
	return out, nil
}
