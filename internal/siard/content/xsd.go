package content

import (
	"fmt"
	"io"
	"strings"

	"db-siard/internal/schema"
	"db-siard/internal/siard"
	"db-siard/internal/siard/path"
	"db-siard/internal/types"
)

const xsdTypes = `  <xs:complexType name="clobType">
    <xs:simpleContent>
      <xs:extension base="xs:string">
        <xs:attribute name="file" type="xs:anyURI"/>
        <xs:attribute name="length" type="xs:integer"/>
        <xs:attribute name="digestType" type="digestTypeType"/>
        <xs:attribute name="digest" type="xs:string"/>
      </xs:extension>
    </xs:simpleContent>
  </xs:complexType>
  <xs:complexType name="blobType">
    <xs:simpleContent>
      <xs:extension base="xs:hexBinary">
        <xs:attribute name="file" type="xs:anyURI"/>
        <xs:attribute name="length" type="xs:integer"/>
        <xs:attribute name="digestType" type="digestTypeType"/>
        <xs:attribute name="digest" type="xs:string"/>
      </xs:extension>
    </xs:simpleContent>
  </xs:complexType>
  <xs:simpleType name="dateType">
    <xs:restriction base="xs:date">
      <xs:minInclusive value="0001-01-01Z"/>
      <xs:maxExclusive value="10000-01-01Z"/>
      <xs:pattern value="\d{4}-\d{2}-\d{2}Z?"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="timeType">
    <xs:restriction base="xs:time">
      <xs:pattern value="\d{2}:\d{2}:\d{2}(\.\d*)?Z?"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="dateTimeType">
    <xs:restriction base="xs:dateTime">
      <xs:minInclusive value="0001-01-01T00:00:00.000000000Z"/>
      <xs:maxExclusive value="10000-01-01T00:00:00.000000000Z"/>
      <xs:pattern value="\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d*)Z?"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:simpleType name="digestTypeType">
    <xs:restriction base="xs:string">
      <xs:whiteSpace value="collapse"/>
      <xs:enumeration value="MD5"/>
      <xs:enumeration value="SHA-1"/>
      <xs:enumeration value="SHA-256"/>
    </xs:restriction>
  </xs:simpleType>
`

// ColumnXSD is the element type used for col in the table schema.
func ColumnXSD(col *schema.Column) string {
	if col.Type.IsLarge() {
		if col.Type.Character() {
			return types.XSDClob
		}
		return types.XSDBlob
	}
	return col.Type.XSD()
}

// WriteXSD writes the schema of table t.
func WriteXSD(w io.Writer, sc *schema.Schema, t *schema.Table) error {
	ns := path.TableNamespace(sc.Index, t.Index)
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	fmt.Fprintf(&b, "<xs:schema xmlns:xs=%q xmlns=%q targetNamespace=%q elementFormDefault=\"qualified\" attributeFormDefault=\"unqualified\">\n",
		siard.XSNamespace, ns, ns)
	b.WriteString("  <xs:element name=\"table\">\n")
	b.WriteString("    <xs:complexType>\n      <xs:sequence>\n")
	b.WriteString("        <xs:element name=\"row\" type=\"recordType\" minOccurs=\"0\" maxOccurs=\"unbounded\"/>\n")
	b.WriteString("      </xs:sequence>\n    </xs:complexType>\n  </xs:element>\n")
	b.WriteString("  <xs:complexType name=\"recordType\">\n    <xs:sequence>\n")
	for _, col := range t.Columns {
		fmt.Fprintf(&b, "      <xs:element name=\"c%d\" type=%q", col.Index, ColumnXSD(col))
		if col.IsNullable {
			b.WriteString(" minOccurs=\"0\"")
		}
		b.WriteString("/>\n")
	}
	b.WriteString("    </xs:sequence>\n  </xs:complexType>\n")
	b.WriteString(xsdTypes)
	b.WriteString("</xs:schema>\n")
	_, err := io.WriteString(w, b.String())
	return err
}
