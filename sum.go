package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LetterRange returns n sequential column labels beginning at start.
// Labels continue past Z as AA, AB, ... in the usual spreadsheet order. An
// unknown start counts from A.
func LetterRange(start string, n int) []string {
	if n <= 0 {
		return nil
	}
	first, err := excelize.ColumnNameToNumber(strings.ToUpper(start))
	if err != nil {
		first = 1
	}
	labels := make([]string, 0, n)
	for col := first; col < first+n; col++ {
		label, err := excelize.ColumnNumberToName(col)
		if err != nil {
			break
		}
		labels = append(labels, label)
	}
	return labels
}

// parseNumber parses a cell value as a number. Blank and NaN values do not count.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// SumValues adds up every numeric entry of values. The boolean is false when
// no entry was numeric, in which case the column has no sum to show.
func SumValues(values []string) (float64, bool) {
	var sum float64
	found := false
	for _, v := range values {
		if f, ok := parseNumber(v); ok {
			sum += f
			found = true
		}
	}
	return sum, found
}

// IsNumericInput reports whether a formula bar edit should trigger a sum
// recompute. A lone "-" counts: it is what the field holds while a negative
// number is being typed or erased.
func IsNumericInput(s string) bool {
	if s == "-" || strings.TrimSpace(s) == "" {
		return true
	}
	_, ok := parseNumber(s)
	return ok
}

// FormatNumber renders a sum the way the footer displays it.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
