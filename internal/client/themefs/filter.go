package themefs

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/themesync/internal/client/workspace"
)

// Filter decides which keys take part in a sync. A key is synced when it
// matches one of the `only` globs (or there are none) and matches neither an
// `ignore` glob nor the ignore list.
type Filter struct {
	only       []string
	ignore     []string
	ignoreList *IgnoreList
}

func NewFilter(only, ignore []string, ignoreList *IgnoreList) (*Filter, error) {
	for _, p := range append(append([]string(nil), only...), ignore...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}
	return &Filter{only: only, ignore: ignore, ignoreList: ignoreList}, nil
}

// Match reports whether key should be synced. Keys outside the theme
// directories never match. A nil Filter matches every other key.
func (f *Filter) Match(key string) bool {
	if !workspace.IsValidKey(key) {
		return false
	}
	if f == nil {
		return true
	}

	if len(f.only) > 0 && !matchAny(f.only, key) {
		return false
	}
	if matchAny(f.ignore, key) {
		return false
	}
	return !f.ignoreList.ShouldIgnore(key)
}

func matchAny(patterns []string, key string) bool {
	for _, p := range patterns {
		// patterns are validated in NewFilter
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return false
}
