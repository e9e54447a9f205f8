// Package template substitutes script-produced variables into widget markup.
// It is the consumer of the sandbox engine's template mode: the engine yields
// a name/value mapping and Render replaces {{ name }} placeholders with the
// corresponding values.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// placeholderPattern matches {{ name }} and {{ name | filter }} placeholders.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*(?:\|\s*([a-z]+)\s*)?\}\}`)

// RenderOptions controls placeholder resolution.
type RenderOptions struct {
	// FailOnMissing makes Render return an error when a placeholder names
	// a variable absent from the mapping. When false, missing placeholders
	// render as an empty string.
	FailOnMissing bool
}

// Render substitutes variables into markup. Values render as their JSON text
// except plain strings, which render unquoted. Supported filters: upper,
// lower, title, trim.
func Render(markup string, variables map[string]interface{}, opts RenderOptions) (string, error) {
	var firstErr error

	rendered := placeholderPattern.ReplaceAllStringFunc(markup, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, filter := groups[1], groups[2]

		value, ok := variables[name]
		if !ok {
			if opts.FailOnMissing && firstErr == nil {
				firstErr = fmt.Errorf("no variable named %q", name)
			}
			return ""
		}

		text := stringify(value)
		if filter != "" {
			filtered, err := applyFilter(text, filter)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return ""
			}
			text = filtered
		}
		return text
	})

	if firstErr != nil {
		return "", firstErr
	}
	return rendered, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

func applyFilter(text, filter string) (string, error) {
	switch filter {
	case "upper":
		return strings.ToUpper(text), nil
	case "lower":
		return strings.ToLower(text), nil
	case "title":
		return cases.Title(language.Und).String(text), nil
	case "trim":
		return strings.TrimSpace(text), nil
	default:
		return "", fmt.Errorf("unknown filter %q", filter)
	}
}
