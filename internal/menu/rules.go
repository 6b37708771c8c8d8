// ABOUTME: Parses backend free-text selection rules into min/max cardinality.
// ABOUTME: Matching is case-insensitive: select|choose, optional exactly|up to, then 1|one.

package menu

import (
	"regexp"
	"strings"
)

// Unbounded marks a Cardinality with no upper limit.
const Unbounded = -1

// Cardinality describes how many items of an option group may be chosen.
type Cardinality struct {
	Min     int  `json:"min"`
	Max     int  `json:"max"`
	Matched bool `json:"matched"`
}

// Required reports whether at least one choice must be made.
func (c Cardinality) Required() bool { return c.Min > 0 }

// Allows reports whether n selections satisfy the rule.
func (c Cardinality) Allows(n int) bool {
	if n < c.Min {
		return false
	}
	return c.Max == Unbounded || n <= c.Max
}

var ruleRe = regexp.MustCompile(`(?i)\b(?:select|choose)\s+(exactly\s+|up\s+to\s+)?(?:1|one)\b`)

// ParseRule interprets a rule like "Select exactly 1" or "choose up to one".
func ParseRule(rules string) Cardinality {
	m := ruleRe.FindStringSubmatch(rules)
	if m == nil {
		return Cardinality{Min: 0, Max: Unbounded}
	}
	if strings.HasPrefix(strings.ToLower(m[1]), "up") {
		return Cardinality{Min: 0, Max: 1, Matched: true}
	}
	return Cardinality{Min: 1, Max: 1, Matched: true}
}
