package validation

import (
	"regexp"
	"strings"
)

// CardBrand identifies the issuing network inferred from the card number prefix.
type CardBrand string

const (
	BrandVisa       CardBrand = "visa"
	BrandMastercard CardBrand = "mastercard"
	BrandAmex       CardBrand = "amex"
	BrandDiscover   CardBrand = "discover"
	BrandDiners     CardBrand = "diners"
	BrandJCB        CardBrand = "jcb"
	BrandUnknown    CardBrand = "unknown"
)

// Prefix rules checked in order; Diners before JCB so 36xx is not misread.
var brandPatterns = []struct {
	brand   CardBrand
	pattern *regexp.Regexp
}{
	{BrandVisa, regexp.MustCompile(`^4`)},
	{BrandMastercard, regexp.MustCompile(`^5[1-5]`)},
	{BrandAmex, regexp.MustCompile(`^3[47]`)},
	{BrandDiscover, regexp.MustCompile(`^6(?:011|5)`)},
	{BrandDiners, regexp.MustCompile(`^3(?:0[0-5]|[68])`)},
	{BrandJCB, regexp.MustCompile(`^(?:2131|1800|35)`)},
}

// DetectCardBrand infers the card network from the number prefix after
// stripping spaces and dashes.
func DetectCardBrand(cardNumber string) CardBrand {
	clean := stripCardNumber(cardNumber)
	if clean == "" {
		return BrandUnknown
	}
	for _, entry := range brandPatterns {
		if entry.pattern.MatchString(clean) {
			return entry.brand
		}
	}
	return BrandUnknown
}

// FormatCardNumber groups the digits for display: 4-6-5 for Amex, groups of
// four otherwise.
func FormatCardNumber(cardNumber string) string {
	clean := stripCardNumber(cardNumber)
	if clean == "" {
		return ""
	}

	if DetectCardBrand(clean) == BrandAmex {
		groups := []string{
			sliceDigits(clean, 0, 4),
			sliceDigits(clean, 4, 10),
			sliceDigits(clean, 10, 15),
		}
		return joinNonEmpty(groups)
	}

	groups := make([]string, 0, (len(clean)+3)/4)
	for i := 0; i < len(clean); i += 4 {
		groups = append(groups, sliceDigits(clean, i, i+4))
	}
	return joinNonEmpty(groups)
}

func stripCardNumber(cardNumber string) string {
	var b strings.Builder
	for _, r := range cardNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sliceDigits(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

func joinNonEmpty(groups []string) string {
	out := groups[:0]
	for _, g := range groups {
		if g != "" {
			out = append(out, g)
		}
	}
	return strings.Join(out, " ")
}
