package tarlayer

import "strings"

// canonicalize strips a single leading "./" so that equivalent path forms
// written by different layers compare equal. No other normalization is
// performed: components are never collapsed and archives are assumed to
// contain no "..".
func canonicalize(raw string) string {
	if strings.HasPrefix(raw, "./") {
		return raw[2:]
	}
	return raw
}

// isUnder reports whether candidate is dir itself or lives under dir's
// subtree, both already canonicalized. A directory deletion of "foo" must
// mask "foo/bar" but never a sibling like "foobar" that merely shares a
// string prefix, so the comparison requires a full component boundary.
func isUnder(dir, candidate string) bool {
	if candidate == dir {
		return true
	}
	return strings.HasPrefix(candidate, dir+"/")
}
