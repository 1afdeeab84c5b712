// Package origin decides whether a message sender's claimed origin is
// trusted, against a configured allow-list that supports * wildcards.
package origin

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher holds a compiled allow-list of origin patterns. A pattern is
// either an exact origin ("https://app.example.com") or contains one or
// more * wildcards ("https://*.example.com"). Matching is anchored over
// the full origin string, never a substring search.
type Matcher struct {
	exact     map[string]struct{}
	wildcards []*regexp.Regexp
}

// NewMatcher compiles the given patterns. Empty patterns are skipped.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{exact: make(map[string]struct{})}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if !strings.Contains(p, "*") {
			m.exact[p] = struct{}{}
			continue
		}

		re, err := compileWildcard(p)
		if err != nil {
			return nil, fmt.Errorf("compiling origin pattern %q: %w", p, err)
		}
		m.wildcards = append(m.wildcards, re)
	}

	return m, nil
}

// compileWildcard turns a *-pattern into an anchored regexp. Literal
// segments are quoted so dots in hostnames stay literal dots.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}

// Allowed reports whether the origin matches the allow-list, either
// exactly or via a wildcard pattern. An empty origin never matches.
func (m *Matcher) Allowed(origin string) bool {
	if origin == "" {
		return false
	}

	if _, ok := m.exact[origin]; ok {
		return true
	}

	for _, re := range m.wildcards {
		if re.MatchString(origin) {
			return true
		}
	}

	return false
}

// Empty reports whether the matcher has no patterns at all. Callers use
// this to fail closed when no allow-list was configured.
func (m *Matcher) Empty() bool {
	return len(m.exact) == 0 && len(m.wildcards) == 0
}
