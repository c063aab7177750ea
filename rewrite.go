package matchpoint

import (
	"fmt"
	"regexp"
)

// Rewrite maps request paths matching From onto To.
// To may reference capture groups of From ($1, ${name}).
type Rewrite struct {
	From string `yaml:"from" toml:"from"`
	To   string `yaml:"to" toml:"to"`
}

// Rewriter rewrites a request path. Paths matching no rule are returned unchanged.
type Rewriter func(string) string

// NewRewriter compiles rules into a Rewriter. The first matching rule wins.
func NewRewriter(rules []Rewrite) (Rewriter, error) {
	compiled := make([]*regexp.Regexp, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.From)
		if err != nil {
			return nil, fmt.Errorf("compiling rewrite from %q: %w: %w", rule.From, err, ErrConfiguration)
		}

		compiled = append(compiled, re)
	}

	rewriter := func(input string) string {
		for i, re := range compiled {
			if re.MatchString(input) {
				return re.ReplaceAllString(input, rules[i].To)
			}
		}

		return input
	}

	return rewriter, nil
}
