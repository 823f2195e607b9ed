// Package price converts price text scraped from shop pages into exact
// decimal amounts and formats amounts back for comparison.
//
// Price text comes in two conventions, "1,234.56" and "1.234,56", with
// currency symbols, spaces and letters mixed in. The rightmost separator
// decides when both are present; a lone comma is a decimal separator only
// when it is the single comma and at most two digits follow it.
package price

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when no numeric literal remains after cleaning.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmbiguousGrouping is returned in strict mode for a single comma
	// followed by exactly three digits, e.g. "1,234".
	ErrAmbiguousGrouping = errors.New("ambiguous grouping")
)

// Separator is the decimal separator hint of a Parser.
type Separator byte

const (
	SeparatorAuto  Separator = 0
	SeparatorDot   Separator = '.'
	SeparatorComma Separator = ','
)

// ParseSeparator converts "." or "," to a Separator; empty and "auto" yield SeparatorAuto.
func ParseSeparator(s string) (Separator, error) {
	switch strings.TrimSpace(s) {
	case "", "auto":
		return SeparatorAuto, nil
	case ".":
		return SeparatorDot, nil
	case ",":
		return SeparatorComma, nil
	}

	return SeparatorAuto, fmt.Errorf("unknown decimal separator %q", s)
}

// Convention names the rule which resolved the separators of a price text.
type Convention string

const (
	ConventionPlain         Convention = "plain"          // dot or no separator
	ConventionUS            Convention = "us"             // 1,234.56
	ConventionEU            Convention = "eu"             // 1.234,56
	ConventionCommaDecimal  Convention = "comma_decimal"  // 123,45
	ConventionCommaGrouping Convention = "comma_grouping" // 1,234
)

// Parser parses price text. The zero value is the default parser.
type Parser struct {
	// Strict rejects "1,234" style input instead of treating the comma as grouping.
	Strict bool

	// Decimal forces the decimal separator; the other separator is then always grouping.
	Decimal Separator
}

var defaultParser = Parser{}

// Parse parses text with the default parser.
func Parse(text string) (decimal.Decimal, error) {
	return defaultParser.Parse(text)
}

// MustParse is like Parse but panics on error. Meant for constants and tests.
func MustParse(text string) decimal.Decimal {
	amount, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return amount
}

// Format returns amount with exactly two fraction digits and no grouping.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Parse returns the amount contained in text.
func (p Parser) Parse(text string) (decimal.Decimal, error) {
	amount, _, err := p.ParseWithConvention(text)
	return amount, err
}

// ParseWithConvention returns the amount together with the convention used to read it.
func (p Parser) ParseWithConvention(text string) (decimal.Decimal, Convention, error) {
	cleaned := clean(text)

	literal, convention, err := p.normalize(cleaned)
	if err != nil {
		return decimal.Zero, convention, fmt.Errorf("could not parse %q: %w", text, err)
	}

	amount, err := toDecimal(literal)
	if err != nil {
		return decimal.Zero, convention, fmt.Errorf("could not parse %q: %w", text, err)
	}

	return amount, convention, nil
}

// clean keeps ASCII digits, commas and dots.
func clean(s string) string {
	var result strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if ('0' <= b && b <= '9') || b == '.' || b == ',' {
			result.WriteByte(b)
		}
	}
	return result.String()
}

// normalize rewrites cleaned text into a dot-decimal literal without grouping.
func (p Parser) normalize(s string) (string, Convention, error) {
	if p.Decimal != SeparatorAuto {
		return p.normalizeHinted(s)
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", "."), ConventionEU, nil
		}
		return strings.ReplaceAll(s, ",", ""), ConventionUS, nil

	case lastComma >= 0:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			return parts[0] + "." + parts[1], ConventionCommaDecimal, nil
		}
		if p.Strict && len(parts) == 2 && len(parts[1]) == 3 {
			return "", ConventionCommaGrouping, ErrAmbiguousGrouping
		}
		return strings.ReplaceAll(s, ",", ""), ConventionCommaGrouping, nil
	}

	return s, ConventionPlain, nil
}

func (p Parser) normalizeHinted(s string) (string, Convention, error) {
	if p.Decimal == SeparatorComma {
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", "."), ConventionEU, nil
	}

	return strings.ReplaceAll(s, ",", ""), ConventionUS, nil
}

var reLiteral = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)

// toDecimal accepts "12", "12.5", ".5" and "12." but needs at least one digit.
func toDecimal(literal string) (decimal.Decimal, error) {
	matches := reLiteral.FindStringSubmatch(literal)
	if matches == nil {
		return decimal.Zero, ErrInvalidAmount
	}

	whole, fraction := matches[1], matches[2]
	if whole == "" && fraction == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}

	normalized := whole
	if fraction != "" {
		normalized += "." + fraction
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	return amount, nil
}
