package extract

import (
	"strings"
	"unicode"
)

// propertyTerms are listing-jargon words that disqualify a token from being
// part of a person's name. Agent blocks on detail pages sit next to feature
// callouts ("Gourmet Kitchen", "Corner Lot") that otherwise look name-shaped.
var propertyTerms = map[string]bool{
	"electric": true,
	"water":    true,
	"kitchen":  true,
	"bedroom":  true,
	"bathroom": true,
	"garage":   true,
	"listing":  true,
	"listed":   true,
	"property": true,
	"home":     true,
	"house":    true,
	"price":    true,
	"sold":     true,
	"new":      true,
	"lot":      true,
	"corner":   true,
	"sqft":     true,
	"acre":     true,
	"acres":    true,
	"pool":     true,
	"view":     true,
	"street":   true,
	"ave":      true,
	"road":     true,
	"blvd":     true,
	"zillow":   true,
	"mls":      true,
}

// tradeTerms mark a string as a brokerage rather than a person. Includes the
// national brands that show up without any generic trade word.
var tradeTerms = []string{
	"realty",
	"real estate",
	"properties",
	"group",
	"team",
	"associates",
	"realtor",
	"brokerage",
	"re/max",
	"coldwell",
	"century",
	"keller",
	"compass",
	"sotheby",
	"berkshire",
	"exp realty",
}

var uiNoiseTerms = []string{"loading", "request", "contact", "today", "early", "button", "click", "undefined"}

// IsPlausibleName reports whether s looks like a person's name: two to four
// alphabetic tokens (internal periods and hyphens allowed), none of them
// property jargon, and not classifiable as a company. Name and company are
// mutually exclusive, with the company reading winning.
func IsPlausibleName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 4 || len(s) > 50 {
		return false
	}

	parts := strings.Fields(s)
	if len(parts) < 2 || len(parts) > 4 {
		return false
	}

	for _, part := range parts {
		if propertyTerms[strings.ToLower(part)] {
			return false
		}
		cleaned := strings.ReplaceAll(strings.ReplaceAll(part, ".", ""), "-", "")
		if cleaned == "" || !isAlpha(cleaned) {
			return false
		}
	}

	return !IsPlausibleCompany(s)
}

// IsPlausibleCompany reports whether s looks like a real-estate brokerage
// name. Requires a trade term or national brand token and rejects UI noise
// that leaks into rendered pages.
func IsPlausibleCompany(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 5 || len(s) > 80 {
		return false
	}

	lower := strings.ToLower(s)
	for _, noise := range uiNoiseTerms {
		if strings.Contains(lower, noise) {
			return false
		}
	}
	for _, term := range tradeTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
