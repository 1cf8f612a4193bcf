// Package core provides the ledger domain model, the locale-tolerant amount
// parser, and the currency normalization and aggregation engines.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts free-form amount text into a number. The input may
// carry a currency symbol, whitespace, a leading sign, and any mix of "." and
// "," as decimal or thousands separators. Invalid input yields 0; this
// function never fails, because it runs on every keystroke of a live form.
//
// Separator resolution:
//   - both "." and "," present: the right-most occurrence of either is the
//     decimal separator, everything else is grouping;
//   - a single separator character: thousands grouping when the groups look
//     like 1.234.567 (first group 1-3 digits, the rest exactly 3), otherwise
//     the last occurrence is the decimal separator.
func ParseAmount(text string) float64 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}

	sign := 1.0
	if s[0] == '-' {
		sign = -1
		s = s[1:]
	}

	// Keep digits and separators only; drops currency symbols and spaces.
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return 0
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	var cleaned string
	switch {
	case hasDot && hasComma:
		lastSep := strings.LastIndexAny(s, ".,")
		cleaned = reassemble(s, len(s)-lastSep-1)
	case hasDot || hasComma:
		sep := byte('.')
		if hasComma {
			sep = ','
		}
		if looksLikeThousands(s, sep) {
			cleaned = strings.ReplaceAll(s, string(sep), "")
		} else {
			idx := strings.LastIndexByte(s, sep)
			cleaned = reassemble(s, len(s)-idx-1)
		}
	default:
		cleaned = s
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0
	}
	return sign * n
}

// reassemble strips every separator from s and re-inserts a decimal point
// decDigits from the right.
func reassemble(s string, decDigits int) string {
	digits := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)
	if decDigits <= 0 {
		return digits
	}
	cut := len(digits) - decDigits
	if cut <= 0 {
		return "0." + digits
	}
	return digits[:cut] + "." + digits[cut:]
}

// looksLikeThousands reports whether every separator in s is a grouping
// separator: the separator occurs at least twice, the first group is 1-3
// digits and every later group exactly 3. A single occurrence is always
// read as a decimal separator ("1.234" is one point two three four).
func looksLikeThousands(s string, sep byte) bool {
	parts := strings.Split(s, string(sep))
	if len(parts) <= 2 {
		return false
	}
	if len(parts[0]) < 1 || len(parts[0]) > 3 || !allDigits(parts[0]) {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 || !allDigits(p) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// FormatAmount renders a value with exactly two decimal digits, dot-grouped
// thousands and a decimal comma (1.234.567,89).
func FormatAmount(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}

// FormatAmountText formats user-entered amount text for display. Blank input
// stays blank so a cleared field is not rewritten to "0,00".
func FormatAmountText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return FormatAmount(ParseAmount(text))
}
