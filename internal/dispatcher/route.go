package dispatcher

import (
	"regexp"
	"strings"
)

// Matcher tests a full page address
type Matcher interface {
	Match(url string) bool
}

// Prefix matches addresses starting with the string.
type Prefix string

func (p Prefix) Match(url string) bool { return strings.HasPrefix(url, string(p)) }

// Pattern matches addresses against a regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// MustPattern compiles expr and panics when it is invalid
func MustPattern(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

func (p Pattern) Match(url string) bool { return p.re.MatchString(url) }

func (p Pattern) String() string { return p.re.String() }

// Route binds a matcher to the handler for that page type.
type Route struct {
	Name   string
	Match  Matcher
	Handle Handler
}

// Table is an ordered route list. The first matching route wins.
type Table []Route

// Resolve returns the index of the first route matching url. Indexes
// identify routes, two addresses resolving to the same index are the same
// page type.
func (t Table) Resolve(url string) (int, bool) {
	for i, r := range t {
		if r.Match.Match(url) {
			return i, true
		}
	}
	return -1, false
}
