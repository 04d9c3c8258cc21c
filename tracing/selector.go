package tracing

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type rule struct {
	path string
	re   *regexp.Regexp
}

func newRule(path string, isRegex bool) (rule, error) {
	if !isRegex {
		return rule{path: strings.TrimSuffix(path, "/")}, nil
	}

	re, err := regexp.Compile("^(?:" + path + ")$")
	if err != nil {
		return rule{}, errors.Wrapf(err, "trace pattern %q", path)
	}

	return rule{path: path, re: re}, nil
}

// matches reports whether the rule covers path. A plain rule covers the path
// itself and everything below it.
func (r rule) matches(path string) bool {
	if r.re != nil {
		return r.re.MatchString(path)
	}

	return path == r.path || strings.HasPrefix(path, r.path+"/")
}

// A Selector decides which component paths are traced. Nothing is traced until
// a path is added. Exclusions take precedence over inclusions.
type Selector struct {
	lock     sync.RWMutex
	includes []rule
	excludes []rule
}

// NewSelector creates an empty Selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Add enables tracing for path, or for every path matching it when isRegex is
// set.
func (s *Selector) Add(path string, isRegex bool) error {
	r, err := newRule(path, isRegex)
	if err != nil {
		return err
	}

	s.lock.Lock()
	s.includes = append(s.includes, r)
	s.lock.Unlock()

	return nil
}

// Exclude disables tracing for path, or for every path matching it when
// isRegex is set.
func (s *Selector) Exclude(path string, isRegex bool) error {
	r, err := newRule(path, isRegex)
	if err != nil {
		return err
	}

	s.lock.Lock()
	s.excludes = append(s.excludes, r)
	s.lock.Unlock()

	return nil
}

// Selected tells if path is traced.
func (s *Selector) Selected(path string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, r := range s.excludes {
		if r.matches(path) {
			return false
		}
	}

	for _, r := range s.includes {
		if r.matches(path) {
			return true
		}
	}

	return false
}
