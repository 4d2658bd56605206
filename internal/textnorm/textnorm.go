// Package textnorm canonicalizes free text for hashing and similarity comparisons.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Normalize lowercases s, turns punctuation into spaces and collapses whitespace.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false

	for _, r := range strings.ToLower(s) {
		if !isWordRune(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}

	return b.String()
}

// isWordRune matches letters, digits, combining marks and underscore
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Tokens splits normalized text into words of at least minLen runes
func Tokens(s string, minLen int) []string {
	fields := strings.Fields(Normalize(s))
	if minLen <= 1 {
		return fields
	}

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Similarity returns an edit-distance ratio in [0,1].
// Identical non-empty strings score 1 and any comparison with an empty string scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// IdentityKey hashes the normalized parts into a bucket key
func IdentityKey(parts ...string) string {
	normalized := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := Normalize(p); n != "" {
			normalized = append(normalized, n)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(normalized, " ")))
	return hex.EncodeToString(sum[:])
}

// StripQuery drops the query string and everything after it
func StripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
