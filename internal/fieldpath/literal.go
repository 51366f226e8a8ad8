package fieldpath

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// CurrentDate is the value sentinel meaning "today" for date and period types.
const CurrentDate = "C"

// Clock supplies the wall-clock time used for the CurrentDate sentinel.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

var (
	isoDate      = mustPattern("%Y-%m-%d")
	sortableDate = mustPattern("%Y%m%d")
	periodCode   = mustPattern("%Y0%m")
)

func mustPattern(p string) *strftime.Strftime {
	f, err := strftime.New(p)
	if err != nil {
		panic(err)
	}
	return f
}

// Literals formats raw values as SQL literals according to a field's type.
type Literals struct {
	clock  Clock
	logger *slog.Logger
}

// NewLiterals creates a formatter. A nil clock means SystemClock; a nil logger
// discards FormatFallback warnings.
func NewLiterals(clock Clock, logger *slog.Logger) *Literals {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Literals{clock: clock, logger: logger}
}

// Format returns value as a SQL literal for field f.
//
//	""        N'value'            (quotes stripped)
//	D         N'yyyy-MM-dd'       when value is "C", else N'value'
//	SDN       yyyyMMdd            unquoted
//	SP, SPN   'YYYY0MM'           from an 8-digit date or "C"
//	other     value               unquoted, quotes stripped
func (l *Literals) Format(f FieldPath, value string) string {
	if f.IsEmpty() {
		return ""
	}
	switch f.Type {
	case TypeText:
		return Text(value)
	case TypeDate:
		if value == CurrentDate {
			value = isoDate.FormatString(l.clock.Now())
		}
		return Text(value)
	case TypeSortableDate:
		if value == CurrentDate {
			return sortableDate.FormatString(l.clock.Now())
		}
		return stripQuotes(value)
	case TypePeriod, TypePeriodNumeric:
		return l.period(f, value)
	default:
		return stripQuotes(value)
	}
}

// FormatArray formats each comma-separated element of csv and returns the
// parenthesised list used by IN.
func (l *Literals) FormatArray(f FieldPath, csv string) string {
	if f.IsEmpty() {
		return ""
	}
	parts := strings.Split(csv, ",")
	for i, p := range parts {
		parts[i] = l.Format(f, p)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// period renders the 'YYYY0MM' period literal. Values that are neither
// eight digits nor the current-date sentinel are passed through quoted,
// never reinterpreted as some other date layout.
func (l *Literals) period(f FieldPath, value string) string {
	v := stripQuotes(strings.TrimSpace(value))
	switch {
	case v == CurrentDate:
		return "'" + periodCode.FormatString(l.clock.Now()) + "'"
	case isEightDigits(v):
		return "'" + v[:4] + "0" + v[4:6] + "'"
	}

	l.logger.Warn("format fallback: period value passed through",
		"field", f.Code,
		"type", f.Type,
		"value", value,
	)
	return "'" + v + "'"
}

// Text quotes value as a national-character string literal.
func Text(value string) string {
	return "N'" + stripQuotes(value) + "'"
}

func stripQuotes(v string) string {
	return strings.ReplaceAll(v, "'", "")
}

func isEightDigits(v string) bool {
	if len(v) != 8 {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}
