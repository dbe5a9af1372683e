// Package identity resolves the textual encodings of a station reference
// observed across the system to one canonical key.
//
// A canonical key is "{provider}_{code}", e.g. "environment_canada_08GA072".
// Historical data carries at least two other spellings of the same station:
// the dotted enum form produced by client serializers
// ("Provider.environmentCanada_08GA072", member casing varies) and the bare
// provider code ("08GA072"), which always belongs to the primary provider.
//
// Resolution is a pure, total function. Input matching none of the known
// shapes is returned unchanged and flagged, so callers can log and count
// unrecognized forms instead of silently writing under a duplicate key. The
// shape table is extensible: new legacy shapes are added from observed data,
// never guessed.
package identity

import (
	"regexp"
	"strings"
)

// Key is the canonical string identity of a station, used as the document
// key everywhere a station is stored or looked up.
type Key string

// Providers recognized in canonical and legacy identifier forms. The first
// entry is the default provider assumed for bare codes.
var providers = []string{
	"environment_canada",
	"usgs",
	"other",
}

// DefaultProvider is assumed for bare station codes.
const DefaultProvider = "environment_canada"

// bareCodeRe matches the primary provider's station code pattern:
// two digits, two letters, three digits, e.g. "08GA072".
var bareCodeRe = regexp.MustCompile(`^[0-9]{2}[A-Z]{2}[0-9]{3}$`)

// NewKey builds the canonical key for a (provider, code) pair.
func NewKey(provider, code string) Key {
	return Key(provider + "_" + code)
}

// shape is one recognized surface encoding of a station reference.
type shape struct {
	name  string
	match func(raw string) (Key, bool)
}

// shapes is the ordered table of recognized encodings. Order matters: the
// canonical form must win before looser legacy matchers run.
var shapes = []shape{
	{name: "canonical", match: matchCanonical},
	{name: "dotted_enum", match: matchDottedEnum},
	{name: "bare_code", match: matchBareCode},
}

// Resolve maps any recognized surface encoding of a station reference to its
// canonical key. The second result reports whether the input matched a known
// shape; unrecognized input is returned unchanged with false. Resolve is
// idempotent: resolving an already-canonical key returns it as-is.
func Resolve(raw string) (Key, bool) {
	for _, s := range shapes {
		if key, ok := s.match(raw); ok {
			return key, true
		}
	}
	return Key(raw), false
}

// Normalize is Resolve without the recognition flag, for call sites that
// accept the unchanged-fallback behavior.
func Normalize(raw string) Key {
	key, _ := Resolve(raw)
	return key
}

// Provider returns the provider segment of a canonical key, or "" if the key
// does not start with a known provider prefix.
func (k Key) Provider() string {
	for _, p := range providers {
		if strings.HasPrefix(string(k), p+"_") {
			return p
		}
	}
	return ""
}

// Code returns the provider station code segment of a canonical key, or ""
// if the key does not start with a known provider prefix.
func (k Key) Code() string {
	for _, p := range providers {
		if rest, ok := strings.CutPrefix(string(k), p+"_"); ok {
			return rest
		}
	}
	return ""
}

func matchCanonical(raw string) (Key, bool) {
	for _, p := range providers {
		if rest, ok := strings.CutPrefix(raw, p+"_"); ok && rest != "" {
			return Key(raw), true
		}
	}
	return "", false
}

// matchDottedEnum rewrites the serialized-enum spelling
// "Provider.<member>_<code>" to canonical form. The member is matched
// case-insensitively with separators ignored, so "environmentCanada",
// "ENVIRONMENT_CANADA", and "environment_canada" all resolve identically.
func matchDottedEnum(raw string) (Key, bool) {
	rest, ok := cutPrefixFold(raw, "provider.")
	if !ok {
		return "", false
	}
	folded := foldIdentifier(rest)
	for _, p := range providers {
		prefix := foldIdentifier(p)
		if !strings.HasPrefix(folded, prefix) {
			continue
		}
		// Locate the code in the original string: it follows the member and
		// one separator. Walk rest until the folded prefix is consumed.
		consumed := 0
		for i := 0; i < len(rest); i++ {
			c := rest[i]
			if c == '_' || c == '-' {
				continue
			}
			consumed++
			if consumed == len(prefix) {
				// The member must end at a separator before the code.
				if i+1 >= len(rest) || (rest[i+1] != '_' && rest[i+1] != '-') {
					return "", false
				}
				code := strings.TrimLeft(rest[i+1:], "_-")
				if code == "" {
					return "", false
				}
				return NewKey(p, code), true
			}
		}
	}
	return "", false
}

func matchBareCode(raw string) (Key, bool) {
	if !bareCodeRe.MatchString(raw) {
		return "", false
	}
	return NewKey(DefaultProvider, raw), true
}

// foldIdentifier lowercases and strips separators so spelling variants of a
// provider enum member compare equal.
func foldIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
