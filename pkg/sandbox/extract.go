package sandbox

import (
	"regexp"
	"strings"
)

// declarationPattern finds a variable-declaration keyword followed by an
// identifier. This is a lexical scan, not a parse: it does not resolve block
// scoping, so a name declared inside a nested block is still proposed as a
// candidate. The wrapper's typeof filter at harvest time is the real guard.
var declarationPattern = regexp.MustCompile(`\b(?:var|let|const)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// extractDeclaredNames returns the deduplicated set of top-level variable
// names a template-mode script declares, in discovery order. Names carrying
// the reserved prefix are dropped so user scripts cannot collide with the
// wrapper's bookkeeping variable.
func extractDeclaredNames(code, reservedPrefix string) []string {
	matches := declarationPattern.FindAllStringSubmatch(code, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		name := match[1]
		if strings.HasPrefix(name, reservedPrefix) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
