package datatype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// timeLayouts are tried in order when a date arrives as text. The first
// entries match what SQLite and PostgreSQL produce for DATETIME/TIMESTAMP
// columns read without type affinity.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC3339Nano,
	"20060102150405Z0700", // LDAP GeneralizedTime
	"20060102150405Z",
}

func unsupported(name string, kind Kind, src any) error {
	return errors.Wrapf(ErrUnsupportedSource, "%s %q: cannot assign %T", kind, name, src)
}

func toInt64(name string, src any) (int64, error) {
	switch x := src.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, errors.Newf("datatype: integer %q: %d overflows int64", name, x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, errors.Newf("datatype: integer %q: %d overflows int64", name, x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.Newf("datatype: integer %q: %v is not integral", name, x)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if x >= 1<<63 || x < math.MinInt64 {
			return 0, errors.Newf("datatype: integer %q: %v overflows int64", name, x)
		}
		return int64(x), nil
	case float32:
		return toInt64(name, float64(x))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "datatype: integer %q", name)
		}
		return n, nil
	case []byte:
		return toInt64(name, string(x))
	}
	return 0, unsupported(name, KindInteger, src)
}

func toFloat64(name string, src any) (float64, error) {
	switch x := src.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "datatype: float %q", name)
		}
		return f, nil
	case []byte:
		return toFloat64(name, string(x))
	}
	if n, err := toInt64(name, src); err == nil {
		return float64(n), nil
	}
	return 0, unsupported(name, KindFloat, src)
}

func toText(name string, src any) (string, error) {
	switch x := src.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case int64, int, int32, int16, int8, uint64, uint32, uint16, uint8, uint:
		return fmt.Sprintf("%d", x), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case bool:
		return strconv.FormatBool(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", unsupported(name, KindString, src)
}

func toTime(name string, kind Kind, src any) (time.Time, error) {
	switch x := src.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, errors.Newf("datatype: %s %q: cannot parse %q", kind, name, s)
	case []byte:
		return toTime(name, kind, string(x))
	}
	return time.Time{}, unsupported(name, kind, src)
}

func toBytes(name string, kind Kind, src any) ([]byte, error) {
	switch x := src.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	}
	return nil, unsupported(name, kind, src)
}
