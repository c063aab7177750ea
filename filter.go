package matchpoint

import (
	"fmt"
	"regexp"
)

// Filterer reports whether a request path is selected.
type Filterer func(string) bool

// NewFilterer compiles include and exclude patterns into a Filterer.
// A path passes if it matches any include and no exclude. When includes is
// empty, all paths pass (subject to excludes).
func NewFilterer(includes, excludes []string) (Filterer, error) {
	reIncludes, err := compileAll(includes)
	if err != nil {
		return nil, fmt.Errorf("compiling include: %w", err)
	}

	reExcludes, err := compileAll(excludes)
	if err != nil {
		return nil, fmt.Errorf("compiling exclude: %w", err)
	}

	if len(reIncludes) == 0 && len(reExcludes) == 0 {
		return func(string) bool { return true }, nil
	}

	return func(path string) bool {
		for _, re := range reExcludes {
			if re.MatchString(path) {
				return false
			}
		}

		// no includes (but excludes did not match)
		if len(reIncludes) == 0 {
			return true
		}

		for _, re := range reIncludes {
			if re.MatchString(path) {
				return true
			}
		}

		return false
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%v: %w: %w", pattern, err, ErrConfiguration)
		}
		compiled = append(compiled, re)
	}

	return compiled, nil
}
