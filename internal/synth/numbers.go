package synth

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+([.,]\d+)?`)

// extractNumbers returns the numeric tokens in s. Tokens glued to a letter
// (invoice ids like INV-1001, currency codes, dates inside words) still
// count via the digit run itself, but a token directly preceded by a letter
// is skipped so "H2" or "Q3" do not register as figures.
func extractNumbers(s string) []string {
	var tokens []string
	for _, loc := range numberPattern.FindAllStringIndex(s, -1) {
		if loc[0] > 0 {
			prev := s[loc[0]-1]
			if (prev >= 'a' && prev <= 'z') || (prev >= 'A' && prev <= 'Z') {
				continue
			}
		}
		tokens = append(tokens, s[loc[0]:loc[1]])
	}
	return tokens
}

// canonicalForms maps one numeric token to the set of spellings that should
// be treated as the same figure: decimal-comma vs decimal-point, trailing
// zeros, integral floats, and two-decimal rounding.
func canonicalForms(token string) []string {
	forms := map[string]bool{token: true}
	normalized := strings.ReplaceAll(token, ",", ".")
	forms[normalized] = true

	if value, err := strconv.ParseFloat(normalized, 64); err == nil {
		forms[strconv.FormatFloat(value, 'f', -1, 64)] = true
		forms[strconv.FormatFloat(value, 'f', 2, 64)] = true
		if value == float64(int64(value)) {
			forms[strconv.FormatInt(int64(value), 10)] = true
		}
	}

	out := make([]string, 0, len(forms))
	for form := range forms {
		out = append(out, form)
	}
	return out
}

// groundingSet collects every acceptable numeric spelling from the source
// texts (rows JSON, row count).
func groundingSet(sources ...string) map[string]bool {
	allowed := map[string]bool{}
	for _, source := range sources {
		for _, token := range extractNumbers(source) {
			for _, form := range canonicalForms(token) {
				allowed[form] = true
			}
		}
	}
	return allowed
}

// ungroundedNumbers returns the numeric tokens in answer that match none of
// the allowed spellings.
func ungroundedNumbers(answer string, allowed map[string]bool) []string {
	var offending []string
	for _, token := range extractNumbers(answer) {
		found := false
		for _, form := range canonicalForms(token) {
			if allowed[form] {
				found = true
				break
			}
		}
		if !found {
			offending = append(offending, token)
		}
	}
	return offending
}
