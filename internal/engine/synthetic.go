package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"db-siard/internal/schema"
	"db-siard/internal/types"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// SyntheticSource fabricates rows from column types and meanings. Tables
// must be requested parents first for foreign keys to find their targets.
type SyntheticSource struct {
	// PerTable is the number of rows generated for each table.
	PerTable int
	// MaxLOB bounds generated large objects, in bytes.
	MaxLOB int

	faker *gofakeit.Faker
	// pool keeps the primary key values handed out per table, so child
	// tables can reference them.
	pool map[string][]any
}

func NewSynthetic(perTable int, seed int64) *SyntheticSource {
	return &SyntheticSource{
		PerTable: perTable,
		MaxLOB:   16 << 10,
		faker:    gofakeit.New(seed),
		pool:     make(map[string][]any),
	}
}

// maxRowsFor lowers the row target when a small integer key would overflow.
func maxRowsFor(t *schema.Table, requested int) int {
	limit := requested
	for _, c := range t.Columns {
		if !c.IsPK || c.Type.Kind != types.NumericExact || c.Type.Scale > 0 {
			continue
		}
		var typeMax int
		switch {
		case c.Type.SQL2008 == "SMALLINT":
			typeMax = 32767
		case c.Type.Precision > 0 && c.Type.Precision < 9:
			typeMax = pow10(c.Type.Precision) - 1
		default:
			continue
		}
		if typeMax < limit {
			limit = typeMax
		}
	}
	return limit
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func (s *SyntheticSource) Rows(ctx context.Context, sc *schema.Schema, t *schema.Table, fn func(*schema.Row) error) error {
	target := maxRowsFor(t, s.PerTable)

	usedKeys := make(map[string]bool)
	usedUnique := make(map[string]map[string]bool)
	for _, c := range t.Columns {
		if c.IsUnique {
			usedUnique[c.Name] = make(map[string]bool)
		}
	}

	var emitted int64
	for attempt := 1; int(emitted) < target && attempt <= target*10; attempt++ {
		if attempt%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		values := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			values[i] = s.value(t, col, int(emitted)+1)
		}

		if key := s.keyOf(t, values); key != "" {
			if usedKeys[key] {
				continue
			}
			usedKeys[key] = true
		}
		duplicate := false
		for i, col := range t.Columns {
			if seen, ok := usedUnique[col.Name]; ok && values[i] != nil {
				k := fmt.Sprint(values[i])
				if seen[k] {
					duplicate = true
					break
				}
				seen[k] = true
			}
		}
		if duplicate {
			continue
		}

		emitted++
		row := &schema.Row{Index: emitted, Cells: make([]schema.Cell, len(t.Columns))}
		for i, col := range t.Columns {
			row.Cells[i] = s.cell(col, values[i])
		}
		s.remember(t, values)
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyntheticSource) keyOf(t *schema.Table, values []any) string {
	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(t.PrimaryKey.Columns))
	for i, col := range t.Columns {
		if col.IsPK {
			parts = append(parts, fmt.Sprint(values[i]))
		}
	}
	return strings.Join(parts, "|")
}

func (s *SyntheticSource) remember(t *schema.Table, values []any) {
	for i, col := range t.Columns {
		if col.IsPK {
			s.pool[t.Name] = append(s.pool[t.Name], values[i])
			return
		}
	}
}

func (s *SyntheticSource) cell(col *schema.Column, v any) schema.Cell {
	switch x := v.(type) {
	case nil:
		return schema.NullCell{}
	case []byte:
		if col.Type.IsLarge() {
			return lobCell(x, false)
		}
	case string:
		if col.Type.IsLarge() {
			return lobCell([]byte(x), true)
		}
	}
	return schema.ScalarCell{Value: v}
}

func (s *SyntheticSource) value(t *schema.Table, col *schema.Column, index int) any {
	for _, fk := range t.ForeignKeys {
		for _, name := range fk.Columns {
			if !strings.EqualFold(name, col.Name) {
				continue
			}
			if vals := s.pool[fk.RefTable]; len(vals) > 0 {
				if col.IsUnique || col.IsPK {
					return vals[(index-1)%len(vals)]
				}
				return vals[s.faker.Rand.Intn(len(vals))]
			}
			if col.IsNullable {
				return nil
			}
			// the referenced table is generated later, assume it starts at 1
			return int64(1)
		}
	}
	if col.IsPK && col.Type.Kind == types.NumericExact {
		return int64(index)
	}
	if col.IsNullable && !col.IsPK && s.faker.Rand.Intn(10) == 0 {
		return nil
	}
	return s.generate(col, t.Name)
}

func (s *SyntheticSource) englishText(words int) string {
	out := make([]string, words)
	for i := range out {
		out[i] = glossary[s.faker.Rand.Intn(len(glossary))].en
	}
	return strings.Join(out, " ")
}

// koreanText renders a phrase, translating roughly half of the words.
func (s *SyntheticSource) koreanText(words int) string {
	out := make([]string, words)
	for i := range out {
		g := glossary[s.faker.Rand.Intn(len(glossary))]
		if s.faker.Rand.Intn(2) == 0 {
			out[i] = g.ko
		} else {
			out[i] = g.en
		}
	}
	return strings.Join(out, " ")
}

func (s *SyntheticSource) pick(list []string) string {
	return list[s.faker.Rand.Intn(len(list))]
}

func (s *SyntheticSource) name() string {
	return s.pick(lastNames) + s.pick(firstNames)
}

func (s *SyntheticSource) address() string {
	return fmt.Sprintf("%s %s %s %d번길", s.pick(cities), s.pick(districts), s.pick(streets), s.faker.Rand.Intn(100)+1)
}

func (s *SyntheticSource) phone() string {
	return fmt.Sprintf("010-%04d-%04d", s.faker.Rand.Intn(10000), s.faker.Rand.Intn(10000))
}

func truncate(v string, limit int) string {
	if limit <= 0 {
		return v
	}
	runes := []rune(v)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return v
}

// generate produces a value for col from its canonical type, refined by the
// column meaning for text.
func (s *SyntheticSource) generate(col *schema.Column, tableName string) any {
	if len(col.EnumValues) > 0 {
		return s.pick(col.EnumValues)
	}
	colName := strings.ToLower(col.Name)
	meaning := col.Meaning
	t := col.Type

	switch t.Kind {
	case types.XML:
		return fmt.Sprintf("<note><to>%s</to><body>%s</body></note>", s.faker.FirstName(), s.faker.Word())

	case types.String, types.Unsupported:
		if t.IsLarge() {
			return s.largeText()
		}
		return truncate(s.text(colName, meaning, tableName, t.MaxLength), t.MaxLength)

	case types.DateTime:
		now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
		return s.faker.DateRange(now.AddDate(-1, 0, 0), now).UTC()

	case types.NumericExact:
		if meaning == "yesno" || strings.Contains(colName, "is_") || strings.Contains(colName, "active") {
			return int64(s.faker.Rand.Intn(2))
		}
		if meaning == "year" || strings.Contains(colName, "year") {
			return int64(2000 + s.faker.Rand.Intn(26))
		}
		if t.Scale > 0 {
			d := decimal.NewFromFloat(s.faker.Price(0.99, 99.99)).Round(int32(t.Scale))
			return d
		}
		maxVal := 50000
		if t.Precision > 0 && t.Precision < 5 {
			maxVal = pow10(t.Precision) - 1
		}
		if t.SQL2008 == "SMALLINT" && maxVal > 30000 {
			maxVal = 30000
		}
		return int64(s.faker.Number(1, maxVal))

	case types.NumericApproximate:
		return s.faker.Price(0.99, 99.99)

	case types.Boolean:
		return s.faker.Bool()

	case types.Binary:
		if t.IsLarge() {
			return s.blob(s.MaxLOB/2 + s.faker.Rand.Intn(s.MaxLOB/2+1))
		}
		size := t.MaxLength
		if size <= 0 || size > 64 {
			size = 16
		}
		return s.blob(size)
	}
	return nil
}

func (s *SyntheticSource) text(colName, meaning, tableName string, length int) string {
	isID := strings.HasSuffix(colName, "id")
	switch {
	case meaning == "year":
		return fmt.Sprintf("%d", 2000+s.faker.Rand.Intn(26))
	case !isID && meaning == "phone":
		return s.phone()
	case !isID && meaning == "email":
		return s.faker.Email()
	case !isID && (meaning == "name" || strings.Contains(colName, "first") || strings.Contains(colName, "last")):
		if length > 0 && length < 3 {
			return s.pick(lastNames)
		}
		return s.name()
	case !isID && meaning == "address":
		return s.address()
	case meaning == "zipcode":
		return fmt.Sprintf("%05d", s.faker.Rand.Intn(100000))
	case meaning == "yesno":
		if s.faker.Bool() {
			return "Y"
		}
		return "N"
	case !isID && meaning == "city":
		return s.pick(cities)
	case !isID && meaning == "district":
		return s.pick(districts)
	case !isID && (meaning == "title" || meaning == "subject"):
		return s.koreanText(2)
	case !isID && (meaning == "description" || meaning == "content" || meaning == "comment" || meaning == "text"):
		return s.koreanText(10)
	case tableName == "category" || tableName == "language":
		return fmt.Sprintf("%s-%d", s.englishText(1), s.faker.Rand.Intn(1000))
	case length > 0 && length < 20:
		return s.englishText(1)
	}
	return s.koreanText(5)
}

// largeText fills between half of MaxLOB and MaxLOB bytes.
func (s *SyntheticSource) largeText() string {
	want := s.MaxLOB/2 + s.faker.Rand.Intn(s.MaxLOB/2+1)
	var b strings.Builder
	for b.Len() < want {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.koreanText(8))
	}
	return b.String()
}

func (s *SyntheticSource) blob(n int) []byte {
	out := make([]byte, n)
	s.faker.Rand.Read(out)
	return out
}
