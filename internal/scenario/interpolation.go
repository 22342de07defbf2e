package scenario

import (
	"regexp"
	"strings"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Interpolate replaces {{ variable }} placeholders with values from vars.
// Undefined variables are left unchanged.
func Interpolate(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		submatches := variablePattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		value, ok := vars[submatches[1]]
		if !ok {
			return match
		}
		return value
	})
}

// Unresolved returns the names of placeholders left in s.
func Unresolved(s string) []string {
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// Field returns the value of the key=value token named key in a reply or
// event line.
func Field(line, key string) (string, bool) {
	for _, tok := range strings.Fields(line) {
		k, v, ok := strings.Cut(tok, "=")
		if ok && k == key {
			return strings.Trim(v, `"`), true
		}
	}
	return "", false
}
