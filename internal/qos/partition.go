package qos

import (
	"regexp"
	"strings"
	"sync"
)

// globCache memoizes the compiled regexp for a glob partition name; SEDP
// matching runs this on every discovered endpoint pair so recompiling per
// call would be wasteful.
var globCache sync.Map // string -> *regexp.Regexp

// PartitionsMatch implements spec.md §4.6's rule: two partition lists match
// iff both are empty, or any literal name in one appears in the other, or
// any glob in one matches any literal in the other. An empty list matches
// only another empty list; it is not treated as equal to [""].
func PartitionsMatch(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if partitionNameMatch(x, y) {
				return true
			}
		}
	}
	return false
}

func partitionNameMatch(x, y string) bool {
	if x == y {
		return true
	}
	if isGlob(x) && globMatch(x, y) {
		return true
	}
	if isGlob(y) && globMatch(y, x) {
		return true
	}
	return false
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func globMatch(pattern, literal string) bool {
	re, ok := globCache.Load(pattern)
	if !ok {
		compiled, err := regexp.Compile("^" + globToRegex(pattern) + "$")
		if err != nil {
			return false
		}
		re, _ = globCache.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(literal)
}

// globToRegex translates a POSIX shell glob (*, ?, [...]) into a regexp
// fragment, escaping every other regexp metacharacter literally.
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			for j < len(glob) && glob[j] != ']' {
				j++
			}
			if j < len(glob) {
				b.WriteString(glob[i : j+1])
				i = j
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
