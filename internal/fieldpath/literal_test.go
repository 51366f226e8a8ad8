package fieldpath

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedClock is local because testutil depends on schema, which imports
// this package.
type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func testClock() Clock {
	return fixedClock(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))
}

func newTestLiterals() *Literals {
	return NewLiterals(testClock(), nil)
}

func TestFormat(t *testing.T) {
	lit := newTestLiterals()

	testCases := []struct {
		name     string
		typeTag  string
		value    string
		expected string
	}{
		{name: "text", typeTag: "", value: "ABC", expected: "N'ABC'"},
		{name: "text strips quotes", typeTag: "", value: "O'Neil", expected: "N'ONeil'"},
		{name: "date literal", typeTag: "D", value: "2023-01-31", expected: "N'2023-01-31'"},
		{name: "date current", typeTag: "D", value: "C", expected: "N'2024-03-05'"},
		{name: "sortable date current", typeTag: "SDN", value: "C", expected: "20240305"},
		{name: "sortable date literal", typeTag: "SDN", value: "20230131", expected: "20230131"},
		{name: "period from 8 digits", typeTag: "SP", value: "20230131", expected: "'2023001'"},
		{name: "period numeric from 8 digits", typeTag: "SPN", value: "20231215", expected: "'2023012'"},
		{name: "period current", typeTag: "SP", value: "C", expected: "'2024003'"},
		{name: "numeric passthrough", typeTag: "N", value: "'42'", expected: "42"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := New(`LA\X`, "", tc.typeTag)
			assert.Equal(t, tc.expected, lit.Format(f, tc.value))
		})
	}
}

func TestFormat_EmptyField(t *testing.T) {
	lit := newTestLiterals()
	assert.Equal(t, "", lit.Format(Empty, "anything"))
	assert.Equal(t, "", lit.FormatArray(Empty, "1,2"))
}

func TestFormat_PeriodFallback(t *testing.T) {
	var logs bytes.Buffer
	lit := NewLiterals(testClock(), slog.New(slog.NewTextHandler(&logs, nil)))

	testCases := []struct {
		name    string
		typeTag string
		value   string
	}{
		{name: "year only", typeTag: "SP", value: "2024"},
		{name: "epoch-like digits", typeTag: "SP", value: "1234567890"},
		{name: "dashed date", typeTag: "SPN", value: "2023-07-14"},
		{name: "free text", typeTag: "SP", value: "Q3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logs.Reset()
			f := New(`LA\PERIOD`, "", tc.typeTag)
			assert.Equal(t, "'"+tc.value+"'", lit.Format(f, tc.value))
			assert.Contains(t, logs.String(), "format fallback: period value passed through")
		})
	}
}

func TestFormat_QuotingIsAdditive(t *testing.T) {
	lit := newTestLiterals()
	f := New(`LA\X`, "", "")

	once := lit.Format(f, "abc")
	twice := lit.Format(f, once)
	assert.NotEqual(t, once, twice)
}

func TestFormatArray(t *testing.T) {
	lit := newTestLiterals()

	assert.Equal(t, "(N'1',N'2',N'3')", lit.FormatArray(New(`LA\X`, "", ""), "1,2,3"))
	assert.Equal(t, "(1,2,3)", lit.FormatArray(New(`LA\X`, "", "N"), "1,2,3"))
	assert.Equal(t, "(20240305,20230101)", lit.FormatArray(New(`LA\X`, "", "SDN"), "C,20230101"))
}
