package write_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"db-siard/internal/failure"
	"db-siard/internal/siard"
	"db-siard/internal/siard/write"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

func newZip(t *testing.T, fs afero.Fs, path string, opts ...write.Option) *write.Zip {
	t.Helper()
	z, err := write.NewZip(fs, siard.Container{Path: path, Kind: siard.Main}, opts...)
	if err != nil {
		t.Fatalf("NewZip failed: %v", err)
	}
	return z
}

func readEntries(t *testing.T, fs afero.Fs, path string) map[string]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestZip_WriteAndFinalize(t *testing.T) {
	fs := afero.NewMemMapFs()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	z := newZip(t, fs, "/out/db.siard", write.WithClock(func() time.Time { return stamp }))

	w, err := z.Open("header/metadata.xml")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	io.WriteString(w, "<siardArchive/>")
	if err := z.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := z.Mkdir("header/version/2.1"); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	if exists, _ := afero.Exists(fs, "/out/db.siard"); exists {
		t.Error("Expected archive to be invisible before Finalize")
	}
	if err := z.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	entries := readEntries(t, fs, "/out/db.siard")
	if entries["header/metadata.xml"] != "<siardArchive/>" {
		t.Errorf("Unexpected metadata entry %q", entries["header/metadata.xml"])
	}
	if _, ok := entries["header/version/2.1/"]; !ok {
		t.Errorf("Expected version marker, got %v", entries)
	}

	files, _ := afero.ReadDir(fs, "/out")
	if len(files) != 1 {
		t.Errorf("Expected only the archive to remain, got %d files", len(files))
	}
}

func TestZip_SingleOpenEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	z := newZip(t, fs, "a.siard")

	if _, err := z.Open("one"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := z.Open("two"); !errors.Is(err, failure.ErrOperation) {
		t.Errorf("Expected OperationFailure for a second open entry, got %v", err)
	}
	if err := z.Finalize(); !errors.Is(err, failure.ErrOperation) {
		t.Errorf("Expected Finalize to fail with an open entry, got %v", err)
	}
	z.Close()
	if _, err := z.Open("one"); !errors.Is(err, write.ErrEntryExists) {
		t.Errorf("Expected ErrEntryExists on reopen, got %v", err)
	}
	if _, err := z.Sink(); !errors.Is(err, write.ErrNoEntry) {
		t.Errorf("Expected ErrNoEntry without an open entry, got %v", err)
	}
	if err := z.Close(); !errors.Is(err, write.ErrNoEntry) {
		t.Errorf("Expected ErrNoEntry on double close, got %v", err)
	}
}

func TestZip_StagedEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	z := newZip(t, fs, "s.siard", write.WithStore())

	staged, err := z.Stage("content/schema1/table1/table1.xml")
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	io.WriteString(staged, "<table>")

	// while the table spools, other entries can be written
	w, err := z.Open("content/schema1/table1/lob1/record1.bin")
	if err != nil {
		t.Fatalf("Open during staging failed: %v", err)
	}
	w.Write([]byte{0xCA, 0xFE})
	z.Close()

	if _, err := z.Open("content/schema1/table1/table1.xml"); !errors.Is(err, write.ErrEntryExists) {
		t.Errorf("Expected staged path to be reserved, got %v", err)
	}
	if err := z.Finalize(); err == nil {
		t.Fatal("Expected Finalize to fail with an unclosed staged entry")
	}

	io.WriteString(staged, "</table>")
	if err := staged.Close(); err != nil {
		t.Fatalf("Staged close failed: %v", err)
	}
	if z.IsOpen() {
		t.Error("Expected no open entry after staged close")
	}
	if err := z.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	entries := readEntries(t, fs, "s.siard")
	if entries["content/schema1/table1/table1.xml"] != "<table></table>" {
		t.Errorf("Unexpected staged content %q", entries["content/schema1/table1/table1.xml"])
	}
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) != 2 {
		t.Errorf("Expected 2 entries, got %v", names)
	}
}

func TestZip_AbortRemovesEverything(t *testing.T) {
	fs := afero.NewMemMapFs()
	z := newZip(t, fs, "/job/x.siard")
	staged, _ := z.Stage("content/schema1/table1/table1.xml")
	io.WriteString(staged, "<table>")
	w, _ := z.Open("content/schema1/table1/lob1/record1.txt")

	if err := z.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if err := z.Abort(); err != nil {
		t.Errorf("Expected second Abort to be a no-op, got %v", err)
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, write.ErrClosed) {
		t.Errorf("Expected writes after abort to fail, got %v", err)
	}
	if err := z.Finalize(); err == nil {
		t.Error("Expected Finalize after Abort to fail")
	}

	files, _ := afero.ReadDir(fs, "/job")
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".siard") || strings.Contains(f.Name(), "partial") || strings.Contains(f.Name(), "stage") {
			t.Errorf("Expected no leftovers, found %s", f.Name())
		}
	}
}

func TestNewZip_RefusesExistingArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "done.siard", []byte("x"), 0o644)
	if _, err := write.NewZip(fs, siard.Container{Path: "done.siard"}); !errors.Is(err, write.ErrEntryExists) {
		t.Errorf("Expected existing archive to be refused, got %v", err)
	}
}

// spoolFs hands out temporary files that cannot be read back.
type spoolFs struct{ afero.Fs }

type unreadable struct{ afero.File }

func (unreadable) Read([]byte) (int, error) { return 0, errors.New("spool unreadable") }

func (f spoolFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || !strings.HasPrefix(filepath.Base(name), ".stage-") {
		return file, err
	}
	return unreadable{file}, nil
}

func TestZip_FailedStagedCopyReleasesEntry(t *testing.T) {
	fs := spoolFs{afero.NewMemMapFs()}
	z := newZip(t, fs, "s.siard")

	staged, err := z.Stage("content/schema1/table1/table1.xml")
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	io.WriteString(staged, "<table/>")
	if err := staged.Close(); !errors.Is(err, failure.ErrOperation) {
		t.Fatalf("Expected the spool copy to fail, got %v", err)
	}
	if z.IsOpen() {
		t.Error("Expected no open entry after a failed staged close")
	}

	if _, err := z.Open("content/schema1/table1/table1.xsd"); err != nil {
		t.Fatalf("Expected a new entry to open, got %v", err)
	}
	if err := z.Close(); err != nil {
		t.Fatal(err)
	}
	if err := z.Finalize(); err != nil {
		t.Errorf("Expected Finalize to succeed, got %v", err)
	}
}

func TestZip_AbortedChannel(t *testing.T) {
	z := newZip(t, afero.NewMemMapFs(), "a.siard")
	select {
	case <-z.Aborted():
		t.Fatal("Expected Aborted to stay open while building")
	default:
	}
	z.Abort()
	z.Abort()
	select {
	case <-z.Aborted():
	default:
		t.Error("Expected Aborted to be closed after Abort")
	}
}
