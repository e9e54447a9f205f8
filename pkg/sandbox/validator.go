package sandbox

import (
	"fmt"
	"regexp"
)

// forbiddenTokens are identifier tokens whose presence in script text is
// rejected before execution. This is a textual heuristic, not the security
// boundary: it is knowingly bypassable with bracket-notation string
// concatenation or Unicode escapes. The boundary is structural, see realm.go.
var forbiddenTokens = []string{
	"constructor",
	"__proto__",
	"prototype",
	"Function",
	"eval",
	"import",
	"globalThis",
	"process",
	"require",
	"Proxy",
	"Reflect",
	"Symbol",
	"WeakRef",
	"FinalizationRegistry",
}

// forbiddenPattern matches any denylisted token as a whole word. Word
// boundaries keep substrings inside longer identifiers (e.g. "reconstructor")
// from matching.
var forbiddenPattern = func() *regexp.Regexp {
	pattern := `\b(`
	for i, token := range forbiddenTokens {
		if i > 0 {
			pattern += "|"
		}
		pattern += regexp.QuoteMeta(token)
	}
	pattern += `)\b`
	return regexp.MustCompile(pattern)
}()

// validateScript screens script text before any realm is built. It rejects
// oversized scripts and whole-word occurrences of denylisted tokens.
func validateScript(code string, maxLength int) *ScriptError {
	if len(code) > maxLength {
		return NewValidationError(fmt.Sprintf("script too large: %d bytes exceeds limit of %d", len(code), maxLength))
	}
	if match := forbiddenPattern.FindString(code); match != "" {
		return NewValidationError(fmt.Sprintf("script contains forbidden keyword: %s", match))
	}
	return nil
}
