package content

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"db-siard/internal/failure"
	"db-siard/internal/types"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"golang.org/x/text/unicode/norm"
)

// Lexical layouts of the SIARD date and time types. Values are always UTC.
const (
	DateLayout     = "2006-01-02Z"
	TimeLayout     = "15:04:05Z"
	DateTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Format renders a scalar value in the lexical form of t. Text is returned
// NFC-normalised and unescaped.
func Format(t types.Type, v any) (string, error) {
	if v == nil {
		return "", failure.Operationf("format", "nil value for %s", t.SQL2008)
	}
	switch t.Kind {
	case types.NumericExact:
		d, err := toDecimal(v)
		if err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		return d.String(), nil
	case types.NumericApproximate:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		return formatDouble(f), nil
	case types.Boolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		return strconv.FormatBool(b), nil
	case types.DateTime:
		return formatTemporal(t, v)
	case types.Binary:
		switch b := v.(type) {
		case []byte:
			return hex.EncodeToString(b), nil
		case string:
			return hex.EncodeToString([]byte(b)), nil
		}
		return "", failure.Operationf("format "+t.SQL2008, "cannot render %T as binary", v)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			s = fmt.Sprint(v)
		}
		return norm.NFC.String(s), nil
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(n)))
	case float32:
		return decimal.NewFromFloat32(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case bool:
		if n {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(i), nil
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}

func formatTemporal(t types.Type, v any) (string, error) {
	var ts time.Time
	switch x := v.(type) {
	case time.Time:
		ts = x
	case []byte:
		parsed, err := cast.ToTimeE(string(x))
		if err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		ts = parsed
	default:
		parsed, err := cast.ToTimeE(v)
		if err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		ts = parsed
	}
	ts = ts.UTC()

	switch t.XSD() {
	case types.XSDTime:
		return ts.Format(TimeLayout), nil
	case types.XSDDate:
		if err := checkYear(ts); err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		return ts.Format(DateLayout), nil
	default:
		if err := checkYear(ts); err != nil {
			return "", failure.Operation("format "+t.SQL2008, err)
		}
		return ts.Format(DateTimeLayout), nil
	}
}

func checkYear(ts time.Time) error {
	if y := ts.Year(); y < 1 || y > 9999 {
		return fmt.Errorf("year %d outside 0001-9999", y)
	}
	return nil
}
