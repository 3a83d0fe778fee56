// Package expand rewrites placeholder tokens in image URLs.
//
// Two token forms are recognised:
//   - $(Name): a named variable such as $(SolutionDir) or $(ProjectDir),
//     looked up case-insensitively in the Variables map
//   - ${NAME}: an environment variable
//
// Tokens that cannot be resolved are left untouched so that the resulting
// path still shows the user what was written in the comment.
package expand

import (
	"os"
	"regexp"
	"strings"
)

// Expander rewrites placeholder tokens in text. Implementations must be pure
// functions of their input.
type Expander interface {
	Expand(text string) string
}

// Func adapts an ordinary function to Expander.
type Func func(text string) string

// Expand calls f(text).
func (f Func) Expand(text string) string { return f(text) }

// Identity returns its input unchanged.
var Identity Expander = Func(func(text string) string { return text })

var (
	// variablePattern matches $(Name) patterns.
	variablePattern = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_.]*)\)`)

	// envVarPattern matches ${VAR_NAME} patterns.
	envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// Variables expands $(Name) tokens from a fixed map and ${NAME} tokens from
// the environment. A Variables is immutable once built and safe for
// concurrent use.
type Variables struct {
	vars   map[string]string
	lookup func(string) (string, bool)
}

// NewVariables builds an expander over vars. Names are matched
// case-insensitively.
func NewVariables(vars map[string]string) *Variables {
	v := &Variables{
		vars:   make(map[string]string, len(vars)),
		lookup: os.LookupEnv,
	}
	for name, value := range vars {
		v.vars[strings.ToLower(name)] = value
	}
	return v
}

// WithLookup returns a copy of v that resolves ${NAME} through lookup
// instead of the process environment.
func (v *Variables) WithLookup(lookup func(string) (string, bool)) *Variables {
	c := v.With(nil)
	c.lookup = lookup
	return c
}

// With returns a copy of v with extra variables added or overridden.
func (v *Variables) With(extra map[string]string) *Variables {
	c := &Variables{
		vars:   make(map[string]string, len(v.vars)+len(extra)),
		lookup: v.lookup,
	}
	for name, value := range v.vars {
		c.vars[name] = value
	}
	for name, value := range extra {
		c.vars[strings.ToLower(name)] = value
	}
	return c
}

// Expand replaces every resolvable token in text.
func (v *Variables) Expand(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	text = variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if value, ok := v.vars[strings.ToLower(name)]; ok {
			return value
		}
		return match
	})

	if v.lookup == nil {
		return text
	}
	return envVarPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := v.lookup(name); ok {
			return value
		}
		return match
	})
}
