// Package metadata encodes and decodes the archive descriptor
// (header/metadata.xml) and writes the header entries.
package metadata

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"db-siard/internal/failure"
	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/path"
	"db-siard/internal/types"
)

//go:embed metadata.xsd
var XSD []byte

const dateLayout = "2006-01-02"

type archiveXML struct {
	XMLName        xml.Name `xml:"http://www.bar.admin.ch/xmlns/siard/2/metadata.xsd siardArchive"`
	XSI            string   `xml:"xmlns:xsi,attr,omitempty"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr,omitempty"`
	Version        string   `xml:"version,attr"`

	DBName              string      `xml:"dbname"`
	Description         string      `xml:"description,omitempty"`
	Archiver            string      `xml:"archiver,omitempty"`
	ArchiverContact     string      `xml:"archiverContact,omitempty"`
	DataOwner           string      `xml:"dataOwner"`
	DataOriginTimespan  string      `xml:"dataOriginTimespan"`
	LOBFolder           string      `xml:"lobFolder,omitempty"`
	ProducerApplication string      `xml:"producerApplication,omitempty"`
	ArchivalDate        string      `xml:"archivalDate"`
	ClientMachine       string      `xml:"clientMachine,omitempty"`
	DatabaseProduct     string      `xml:"databaseProduct,omitempty"`
	Connection          string      `xml:"connection,omitempty"`
	DatabaseUser        string      `xml:"databaseUser,omitempty"`
	Schemas             []schemaXML `xml:"schemas>schema"`
	Users               []userXML   `xml:"users>user"`
}

type schemaXML struct {
	Name        string     `xml:"name"`
	Folder      string     `xml:"folder"`
	Description string     `xml:"description,omitempty"`
	Tables      []tableXML `xml:"tables>table"`
}

type tableXML struct {
	Name             string               `xml:"name"`
	Folder           string               `xml:"folder"`
	Description      string               `xml:"description,omitempty"`
	Columns          []columnXML          `xml:"columns>column"`
	PrimaryKey       *keyXML              `xml:"primaryKey"`
	ForeignKeys      []foreignKeyXML      `xml:"foreignKeys>foreignKey"`
	CandidateKeys    []keyXML             `xml:"candidateKeys>candidateKey"`
	CheckConstraints []checkConstraintXML `xml:"checkConstraints>checkConstraint"`
	Rows             int64                `xml:"rows"`
}

type columnXML struct {
	Name         string `xml:"name"`
	LOBFolder    string `xml:"lobFolder,omitempty"`
	Type         string `xml:"type"`
	TypeOriginal string `xml:"typeOriginal,omitempty"`
	DefaultValue string `xml:"defaultValue,omitempty"`
	Nullable     bool   `xml:"nullable"`
	Description  string `xml:"description,omitempty"`
}

type keyXML struct {
	Name        string   `xml:"name"`
	Columns     []string `xml:"column"`
	Description string   `xml:"description,omitempty"`
}

type foreignKeyXML struct {
	Name             string         `xml:"name"`
	ReferencedSchema string         `xml:"referencedSchema"`
	ReferencedTable  string         `xml:"referencedTable"`
	References       []referenceXML `xml:"reference"`
	Description      string         `xml:"description,omitempty"`
}

type referenceXML struct {
	Column     string `xml:"column"`
	Referenced string `xml:"referenced"`
}

type checkConstraintXML struct {
	Name      string `xml:"name"`
	Condition string `xml:"condition"`
}

type userXML struct {
	Name        string `xml:"name"`
	Description string `xml:"description,omitempty"`
}

type EncodeOptions struct {
	// LOBFolder names the external LOB container, if any.
	LOBFolder string
}

// Encode writes the descriptor of db. Virtual columns and keys are archived
// with VirtualMarker leading their description.
func Encode(w io.Writer, db *schema.DatabaseStructure, opts EncodeOptions) error {
	if db == nil {
		return failure.Operationf("encode metadata", "no database structure")
	}
	doc := archiveXML{
		XSI:                 siard.XSINamespace,
		SchemaLocation:      siard.MetadataNamespace + " metadata.xsd",
		Version:             siard.Version,
		DBName:              orUnknown(db.Name),
		Description:         db.Description,
		Archiver:            db.Archiver,
		ArchiverContact:     db.ArchiverContact,
		DataOwner:           orUnknown(db.DataOwner),
		DataOriginTimespan:  orUnknown(db.DataOriginTimespan),
		LOBFolder:           opts.LOBFolder,
		ProducerApplication: db.ProducerApplication,
		ClientMachine:       db.ClientMachine,
		DatabaseProduct:     db.ProductName,
		Connection:          db.Connection,
		DatabaseUser:        db.DatabaseUser,
	}
	date := db.ArchivalDate
	if date.IsZero() {
		date = time.Now()
	}
	doc.ArchivalDate = date.UTC().Format(dateLayout)

	for _, s := range db.Schemas {
		sx := schemaXML{Name: s.Name, Folder: path.SchemaFolder(s.Index), Description: s.Description}
		for _, t := range s.Tables {
			sx.Tables = append(sx.Tables, encodeTable(t))
		}
		doc.Schemas = append(doc.Schemas, sx)
	}
	for _, u := range db.Users {
		doc.Users = append(doc.Users, userXML{Name: u.Name, Description: u.Description})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return failure.Operation("encode metadata", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return failure.Operation("encode metadata", err)
	}
	if err := enc.Close(); err != nil {
		return failure.Operation("encode metadata", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unspecified"
	}
	return s
}

// VirtualMarker opens the description of a virtual column or key.
const VirtualMarker = "[virtual]"

func markVirtual(virtual bool, description string) string {
	if !virtual {
		return description
	}
	if description == "" {
		return VirtualMarker
	}
	return VirtualMarker + " " + description
}

func unmarkVirtual(description string) (string, bool) {
	rest, ok := strings.CutPrefix(description, VirtualMarker)
	if !ok {
		return description, false
	}
	return strings.TrimPrefix(rest, " "), true
}

func encodeTable(t *schema.Table) tableXML {
	tx := tableXML{Name: t.Name, Folder: path.TableFolder(t.Index), Description: t.Description, Rows: t.Rows}
	for _, c := range t.Columns {
		tx.Columns = append(tx.Columns, columnXML{
			Name:         c.Name,
			Type:         c.Type.String(),
			TypeOriginal: c.Type.Original,
			DefaultValue: c.Default,
			Nullable:     c.IsNullable,
			Description:  markVirtual(c.Virtual, c.Comment),
		})
	}
	if pk := t.PrimaryKey; pk != nil && len(pk.Columns) > 0 {
		tx.PrimaryKey = &keyXML{Name: pk.Name, Columns: pk.Columns, Description: markVirtual(pk.Virtual, "")}
	}
	for _, fk := range t.ForeignKeys {
		fx := foreignKeyXML{
			Name:             fk.Name,
			ReferencedSchema: fk.RefSchema,
			ReferencedTable:  fk.RefTable,
			Description:      markVirtual(fk.Virtual, ""),
		}
		for i, col := range fk.Columns {
			ref := ""
			if i < len(fk.RefColumns) {
				ref = fk.RefColumns[i]
			}
			fx.References = append(fx.References, referenceXML{Column: col, Referenced: ref})
		}
		tx.ForeignKeys = append(tx.ForeignKeys, fx)
	}
	for _, ck := range t.CandidateKeys {
		tx.CandidateKeys = append(tx.CandidateKeys, keyXML{Name: ck.Name, Columns: ck.Columns})
	}
	for _, cc := range t.CheckConstraints {
		tx.CheckConstraints = append(tx.CheckConstraints, checkConstraintXML{Name: cc.Name, Condition: cc.Condition})
	}
	return tx
}

// Decode reads a descriptor back into a database structure. Folder names
// give schema and table ordinals; column types are parsed from their SQL2008
// names and fall back to Unsupported.
func Decode(r io.Reader) (*schema.DatabaseStructure, error) {
	var doc archiveXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, failure.Operation("decode metadata", err)
	}
	if doc.Version != siard.Version {
		return nil, failure.Operationf("decode metadata", "unsupported archive version %q", doc.Version)
	}
	db := &schema.DatabaseStructure{
		Name:                doc.DBName,
		Description:         doc.Description,
		Archiver:            doc.Archiver,
		ArchiverContact:     doc.ArchiverContact,
		DataOwner:           doc.DataOwner,
		DataOriginTimespan:  doc.DataOriginTimespan,
		ProducerApplication: doc.ProducerApplication,
		ClientMachine:       doc.ClientMachine,
		ProductName:         doc.DatabaseProduct,
		Connection:          doc.Connection,
		DatabaseUser:        doc.DatabaseUser,
	}
	if doc.ArchivalDate != "" {
		d, err := time.Parse(dateLayout, strings.TrimSuffix(doc.ArchivalDate, "Z"))
		if err != nil {
			return nil, failure.Operation("decode metadata", fmt.Errorf("archivalDate: %w", err))
		}
		db.ArchivalDate = d
	}

	for _, sx := range doc.Schemas {
		n, err := siard.SchemaOrdinal(sx.Folder)
		if err != nil {
			return nil, err
		}
		s := &schema.Schema{Name: sx.Name, Description: sx.Description, Index: n}
		for _, tx := range sx.Tables {
			c, err := siard.NewContent(sx.Folder, tx.Folder)
			if err != nil {
				return nil, err
			}
			t := decodeTable(tx)
			t.Index = c.TableIndex()
			s.Tables = append(s.Tables, t)
		}
		db.Schemas = append(db.Schemas, s)
	}
	for _, u := range doc.Users {
		db.Users = append(db.Users, schema.User{Name: u.Name, Description: u.Description})
	}
	return db, nil
}

// LOBFolder returns the external LOB container named by the descriptor.
func LOBFolder(r io.Reader) (string, error) {
	var doc archiveXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return "", failure.Operation("decode metadata", err)
	}
	return doc.LOBFolder, nil
}

func decodeTable(tx tableXML) *schema.Table {
	t := &schema.Table{Name: tx.Name, Description: tx.Description, Rows: tx.Rows}
	for _, cx := range tx.Columns {
		typ, ok := types.ParseSQL2008(cx.Type)
		if !ok {
			typ = types.Type{Kind: types.Unsupported, SQL2008: cx.Type, LOB: true}
		}
		typ.Original = cx.TypeOriginal
		comment, virtual := unmarkVirtual(cx.Description)
		t.AddColumn(&schema.Column{
			Name:       cx.Name,
			Type:       typ,
			DataType:   cx.TypeOriginal,
			Length:     typ.MaxLength,
			IsNullable: cx.Nullable,
			Default:    cx.DefaultValue,
			Comment:    comment,
			Virtual:    virtual,
		})
	}
	if tx.PrimaryKey != nil {
		_, virtual := unmarkVirtual(tx.PrimaryKey.Description)
		t.PrimaryKey = &schema.PrimaryKey{Name: tx.PrimaryKey.Name, Columns: tx.PrimaryKey.Columns, Virtual: virtual}
		for _, name := range tx.PrimaryKey.Columns {
			if c := t.Column(name); c != nil {
				c.IsPK = true
			}
		}
	}
	for _, fx := range tx.ForeignKeys {
		_, virtual := unmarkVirtual(fx.Description)
		fk := &schema.ForeignKey{Name: fx.Name, RefSchema: fx.ReferencedSchema, RefTable: fx.ReferencedTable, Virtual: virtual}
		for _, ref := range fx.References {
			fk.Columns = append(fk.Columns, ref.Column)
			fk.RefColumns = append(fk.RefColumns, ref.Referenced)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
		if !strings.EqualFold(fk.RefTable, t.Name) && !slices.Contains(t.Dependencies, fk.RefTable) {
			t.Dependencies = append(t.Dependencies, fk.RefTable)
		}
	}
	for _, kx := range tx.CandidateKeys {
		t.CandidateKeys = append(t.CandidateKeys, &schema.CandidateKey{Name: kx.Name, Columns: kx.Columns})
	}
	for _, cx := range tx.CheckConstraints {
		t.CheckConstraints = append(t.CheckConstraints, &schema.CheckConstraint{Name: cx.Name, Condition: cx.Condition})
	}
	return t
}
