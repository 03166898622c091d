// Package siard holds the SIARD 2.1 format constants and the coordinates
// shared by the export, validate and restore pipelines.
package siard

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"db-siard/internal/failure"
)

const (
	Version           = "2.1"
	MetadataNamespace = "http://www.bar.admin.ch/xmlns/siard/2/metadata.xsd"
	TableNamespace    = "http://www.admin.ch/xmlns/siard/2/"
	XSINamespace      = "http://www.w3.org/2001/XMLSchema-instance"
	XSNamespace       = "http://www.w3.org/2001/XMLSchema"

	HeaderDir    = "header"
	ContentDir   = "content"
	MetadataXML  = "header/metadata.xml"
	MetadataXSD  = "header/metadata.xsd"
	VersionDir   = "header/version/2.1/"
	Extension    = ".siard"
	LOBsSuffix   = "_lobs.zip"
	DigestMD5    = "MD5"
	DefaultCLOB  = 4000
	DefaultBLOB  = 2000
	DefaultFiles = 10000
)

// Kind tags a physical container of a logical archive.
type Kind int

const (
	Main Kind = iota
	Auxiliary
)

func (k Kind) String() string {
	if k == Auxiliary {
		return "AUXILIARY"
	}
	return "MAIN"
}

// Container identifies one physical file of an archive.
type Container struct {
	Path string
	Kind Kind
}

// AuxiliaryFor names the external LOB container that accompanies main.
func AuxiliaryFor(main Container) Container {
	base := strings.TrimSuffix(main.Path, filepath.Ext(main.Path))
	return Container{Path: base + LOBsSuffix, Kind: Auxiliary}
}

// Content is a schemaN/tableM coordinate inside the content folder.
type Content struct {
	Schema string
	Table  string

	schemaN int
	tableN  int
}

var (
	schemaFolder = regexp.MustCompile(`^schema([0-9]+)$`)
	tableFolder  = regexp.MustCompile(`^table([0-9]+)$`)
)

// NewContent builds a coordinate from folder names. Names that do not follow
// the schemaN/tableM convention are a configuration error.
func NewContent(schema, table string) (Content, error) {
	sm := schemaFolder.FindStringSubmatch(schema)
	tm := tableFolder.FindStringSubmatch(table)
	if sm == nil || tm == nil {
		return Content{}, failure.Configuration("content folder %s/%s does not follow schemaN/tableM naming", schema, table)
	}
	s, errS := strconv.Atoi(sm[1])
	t, errT := strconv.Atoi(tm[1])
	if errS != nil || errT != nil {
		return Content{}, failure.Configuration("content folder %s/%s has an out of range ordinal", schema, table)
	}
	return Content{Schema: schema, Table: table, schemaN: s, tableN: t}, nil
}

// SchemaOrdinal reads N from a schemaN folder name.
func SchemaOrdinal(folder string) (int, error) {
	m := schemaFolder.FindStringSubmatch(folder)
	if m == nil {
		return 0, failure.Configuration("schema folder %q does not follow schemaN naming", folder)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, failure.Configuration("schema folder %q has an out of range ordinal", folder)
	}
	return n, nil
}

// ParseContent reads "schema2/table10".
func ParseContent(s string) (Content, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 2 {
		return Content{}, failure.Configuration("content coordinate %q is not schemaN/tableM", s)
	}
	return NewContent(parts[0], parts[1])
}

// At returns the coordinate of the given 1-based ordinals.
func At(schema, table int) Content {
	return Content{
		Schema:  fmt.Sprintf("schema%d", schema),
		Table:   fmt.Sprintf("table%d", table),
		schemaN: schema,
		tableN:  table,
	}
}

func (c Content) SchemaIndex() int { return c.schemaN }
func (c Content) TableIndex() int  { return c.tableN }
func (c Content) String() string   { return c.Schema + "/" + c.Table }

// Less orders by schema ordinal, then table ordinal.
func (c Content) Less(o Content) bool {
	if c.schemaN != o.schemaN {
		return c.schemaN < o.schemaN
	}
	return c.tableN < o.tableN
}

// SortContents orders numerically, so schema2/table10 follows schema2/table2.
func SortContents(cs []Content) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Less(cs[j]) })
}
