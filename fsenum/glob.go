package fsenum

import "strings"

// MatchGlob implements the restricted glob semantics from spec §4.3:
//
//	"*"    alone matches anything
//	"*x*"  matches substring x
//	"*x"   matches suffix x
//	"x*"   matches prefix x
//	"x"    exact match
func MatchGlob(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	hasPrefixStar := strings.HasPrefix(pattern, "*")
	hasSuffixStar := strings.HasSuffix(pattern, "*")
	switch {
	case hasPrefixStar && hasSuffixStar:
		mid := pattern[1 : len(pattern)-1]
		return strings.Contains(name, mid)
	case hasSuffixStar:
		prefix := pattern[:len(pattern)-1]
		return strings.HasPrefix(name, prefix)
	case hasPrefixStar:
		suffix := pattern[1:]
		return strings.HasSuffix(name, suffix)
	default:
		return pattern == name
	}
}

// MatchAny reports whether name matches any pattern.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if MatchGlob(p, name) {
			return true
		}
	}
	return false
}
