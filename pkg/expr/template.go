package expr

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Interpolate replaces every {{NAME}} occurrence with the string form of
// NAME resolved against vars. The scan runs once over the original
// string — a value substituted in is never itself re-scanned for further
// placeholders. An unresolved name is an error.
func Interpolate(template string, vars Vars) (string, error) {
	var firstErr error
	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := vars.Resolve(name)
		if !ok {
			firstErr = &UnresolvedVariableError{Name: name}
			return match
		}
		return toStringValue(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// InterpolateTolerant behaves like Interpolate but leaves an unresolved
// placeholder in place instead of failing. It backs the executor's URL
// pre-check (§4.7.4), which needs to detect remaining unresolved names
// rather than abort on the first one.
func InterpolateTolerant(template string, vars Vars) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := vars.Resolve(name); ok {
			return toStringValue(v)
		}
		return match
	})
}

// HasPlaceholder reports whether s still contains an unresolved {{...}}.
func HasPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}
