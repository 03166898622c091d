// Package types is the canonical, backend-neutral type model. Every native
// column type is resolved into a Type before it reaches the archive writers.
package types

import "fmt"

type Kind int

const (
	Unsupported Kind = iota
	String
	NumericExact
	NumericApproximate
	DateTime
	Boolean
	Binary
	// XML documents are archived as character large objects.
	XML
)

var kindNames = map[Kind]string{
	Unsupported:        "unsupported",
	String:             "string",
	NumericExact:       "numeric-exact",
	NumericApproximate: "numeric-approximate",
	DateTime:           "datetime",
	Boolean:            "boolean",
	Binary:             "binary",
	XML:                "xml",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Descriptor is the native type tuple a backend reports for a column.
type Descriptor struct {
	Code  int
	Name  string
	Size  int
	Scale int
	Radix int
}

// Type is a resolved column type. It is a plain value: two resolutions of the
// same Descriptor compare equal with ==.
type Type struct {
	Kind Kind

	// String and Binary
	MaxLength int
	LOB       bool

	// NumericExact and NumericApproximate
	Precision int
	Scale     int

	// DateTime
	TimePart bool
	TimeZone bool

	Original    string
	Description string
	SQL2008     string
	SQL99       string

	// Native is kept for every type; Unsupported types carry nothing else.
	Native Descriptor
}

// IsLarge reports whether values of t may be written outside the row.
func (t Type) IsLarge() bool {
	return t.LOB && (t.Kind == String || t.Kind == Binary || t.Kind == XML || t.Kind == Unsupported)
}

// Character reports whether values of t are text.
func (t Type) Character() bool {
	return t.Kind == String || t.Kind == XML || t.Kind == Unsupported
}

func (t Type) String() string {
	if t.SQL2008 != "" {
		return t.SQL2008
	}
	return t.Kind.String()
}
