// Package micr parses the OCR plaintext of a check's MICR line into a
// routing number and account number. It is pure: no I/O, no state.
package micr

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidInput is returned when there is no text to parse at all. Empty
// input is a rejection, never a silent default.
var ErrInvalidInput = errors.New("micr: empty raw text")

// Sentinels are out-of-domain values (account numbers are never negative),
// so downstream consumers can always tell them from real data. Absence and
// ambiguity are reported distinctly because the rejection reason may be
// logged or surfaced.
const (
	SentinelAbsent    = "-1"
	SentinelAmbiguous = "-2"
)

var (
	// The MICR line renders the routing number between two identical
	// delimiter glyphs, which OCR reads as '['.
	routingPattern = regexp.MustCompile(`\[\d{9}\[`)

	// The account number follows the routing delimiters: optional space,
	// an alphanumeric run, and a terminating '@' glyph.
	accountPattern = regexp.MustCompile(`(?i)(\[\d{9}\[)( ?)([0-9A-Z]+@)`)
)

// accountGroupBound is the expected submatch count for accountPattern
// (full match + three groups). Anything beyond it is ambiguous.
const accountGroupBound = 4

// ParseResult holds the extracted routing/account pair. Immutable value.
type ParseResult struct {
	RoutingNumber string
	AccountNumber string
}

// IsValid reports whether the extraction is usable. The account-length==2
// check targets a known OCR failure signature, not short accounts in
// general; it is preserved as-is pending product-owner confirmation.
func (r ParseResult) IsValid() bool {
	return len(r.RoutingNumber) == 9 && len(r.AccountNumber) != 2
}

// Extract parses raw OCR plaintext. Routing and account extraction are
// evaluated independently so a failure in one does not mask a valid result
// in the other.
func Extract(raw string) (ParseResult, error) {
	if raw == "" {
		return ParseResult{}, ErrInvalidInput
	}

	routingMatches := routingPattern.FindAllString(raw, -1)
	if len(routingMatches) == 0 {
		return ParseResult{RoutingNumber: SentinelAbsent, AccountNumber: "0"}, nil
	}
	if len(routingMatches) > 1 {
		return ParseResult{RoutingNumber: SentinelAmbiguous, AccountNumber: "0"}, nil
	}
	routingNumber := routingMatches[0][1:10]

	accountMatches := accountPattern.FindStringSubmatch(raw)
	if accountMatches == nil {
		return ParseResult{RoutingNumber: routingNumber, AccountNumber: SentinelAbsent}, nil
	}
	if len(accountMatches) > accountGroupBound {
		return ParseResult{RoutingNumber: routingNumber, AccountNumber: SentinelAmbiguous}, nil
	}
	accountNumber := strings.TrimSuffix(accountMatches[3], "@")

	return ParseResult{RoutingNumber: routingNumber, AccountNumber: accountNumber}, nil
}
