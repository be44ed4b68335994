package planning

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RenderPrompt substitutes {name} placeholders in text with values from
// fields. If any placeholder has no value the text is returned unchanged
// together with the first missing key.
func RenderPrompt(text string, fields map[string]string) (string, string) {
	missing := ""
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if _, ok := fields[m[1]]; !ok {
			missing = m[1]
			break
		}
	}
	if missing != "" {
		return text, missing
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
		return fields[tok[1:len(tok)-1]]
	}), ""
}
