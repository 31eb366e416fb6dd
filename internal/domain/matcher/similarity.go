package matcher

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// minContainedReference is the shortest reference key that may match by
// containment inside a longer transaction reference or description.
const minContainedReference = 4

// editOptions weighs substitutions like a single edit.
var editOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.DefaultOptions.Matches,
}

// legalSuffixes are dropped from names before comparison.
var legalSuffixes = map[string]bool{
	"ltd":         true,
	"limited":     true,
	"pvt":         true,
	"private":     true,
	"corp":        true,
	"corporation": true,
	"co":          true,
	"company":     true,
	"inc":         true,
	"llp":         true,
	"llc":         true,
	"plc":         true,
	"the":         true,
	"ms":          true,
}

// referenceKey uppercases s and keeps only letters and digits, so
// "inv-2024/001" and "INV2024001" compare equal.
func referenceKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// nameTokens lowercases s, splits it on anything that is not a letter or
// digit and drops legal suffixes.
func nameTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if !legalSuffixes[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// nameKey is the canonical form of a counterparty name. Entries sharing a
// key belong to the same counterparty for bulk grouping.
func nameKey(s string) string {
	return strings.Join(nameTokens(s), " ")
}

// referenceMatches reports whether a ledger reference key appears in a
// transaction's reference or description keys.
func referenceMatches(entryRef, txnRef, txnDesc string) bool {
	if entryRef == "" {
		return false
	}
	if entryRef == txnRef {
		return true
	}
	if len(entryRef) < minContainedReference {
		return false
	}
	return strings.Contains(txnRef, entryRef) || strings.Contains(txnDesc, entryRef)
}

// nameMatches reports whether the counterparty tokens appear in the text
// tokens, either verbatim or as a window whose edit similarity is at least
// threshold.
func nameMatches(name, text []string, threshold float64) bool {
	if len(name) == 0 || len(text) < len(name) {
		return false
	}
	want := strings.Join(name, " ")
	for i := 0; i+len(name) <= len(text); i++ {
		window := strings.Join(text[i:i+len(name)], " ")
		if window == want || similarity(window, want) >= threshold {
			return true
		}
	}
	return false
}

// similarity returns 1 - distance/maxLen, in [0, 1].
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	distance := levenshtein.DistanceForStrings(ra, rb, editOptions)
	sim := 1 - float64(distance)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}
