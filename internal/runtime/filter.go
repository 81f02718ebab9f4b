package runtime

import (
	"regexp"
	"strings"

	"github.com/aretw0/s3conform/pkg/domain"
)

// Filter selects suites by include/exclude patterns. Patterns are regular
// expressions anchored at the start of the matched path.
type Filter struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

// NewFilter compiles the patterns. Blank patterns are ignored.
func NewFilter(includes, excludes []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.includes, err = compilePatterns("includes", includes); err != nil {
		return nil, err
	}
	if f.excludes, err = compilePatterns("excludes", excludes); err != nil {
		return nil, err
	}
	return f, nil
}

func compilePatterns(field string, patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, &domain.ConfigurationError{Field: field, Reason: "invalid pattern " + p, Err: err}
		}
		out = append(out, re)
	}
	return out, nil
}

// Allow reports whether a suite should run. A suite runs when no exclude
// pattern matches any of its paths and, if includes are configured, at least
// one include pattern does.
func (f *Filter) Allow(s *domain.LinearSuite) bool {
	if f == nil {
		return true
	}
	paths := s.Paths()
	if len(f.includes) > 0 && !anyMatch(f.includes, paths) {
		return false
	}
	return !anyMatch(f.excludes, paths)
}

func anyMatch(patterns []*regexp.Regexp, paths []string) bool {
	for _, re := range patterns {
		for _, p := range paths {
			if re.MatchString(p) {
				return true
			}
		}
	}
	return false
}
