package processtest

import (
	"fmt"
	"regexp"
	"strconv"
)

// Arg matches a single argument: either an exact string or a pattern.
type Arg struct {
	exact   string
	pattern *regexp.Regexp
}

// Exact matches s literally.
func Exact(s string) Arg {
	return Arg{exact: s}
}

// Pattern matches any argument the regular expression expr finds a match in.
// It panics if expr does not compile.
func Pattern(expr string) Arg {
	return Arg{pattern: regexp.MustCompile(expr)}
}

// Args converts strings and *regexp.Regexp values into matchers.
// Any other type panics; it is a test-setup error.
func Args(values ...any) []Arg {
	out := make([]Arg, 0, len(values))
	for _, v := range values {
		switch v := v.(type) {
		case string:
			out = append(out, Exact(v))
		case *regexp.Regexp:
			out = append(out, Arg{pattern: v})
		case Arg:
			out = append(out, v)
		default:
			panic(fmt.Sprintf("processtest: unsupported argument matcher %T", v))
		}
	}
	return out
}

// Strings turns plain strings into exact matchers.
func Strings(values ...string) []Arg {
	out := make([]Arg, len(values))
	for i, v := range values {
		out[i] = Exact(v)
	}
	return out
}

// Match reports whether s satisfies the matcher.
func (a Arg) Match(s string) bool {
	if a.pattern != nil {
		return a.pattern.MatchString(s)
	}
	return a.exact == s
}

func (a Arg) String() string {
	if a.pattern != nil {
		return "/" + a.pattern.String() + "/"
	}
	return strconv.Quote(a.exact)
}

func matchArgs(matchers []Arg, args []string) bool {
	if len(matchers) != len(args) {
		return false
	}
	for i, m := range matchers {
		if !m.Match(args[i]) {
			return false
		}
	}
	return true
}
