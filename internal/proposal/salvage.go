package proposal

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Salvager extracts a displayable message from malformed function arguments.
type Salvager interface {
	Salvage(raw string) (string, bool)
}

// SalvagerFunc adapts a function to Salvager.
type SalvagerFunc func(raw string) (string, bool)

// Salvage implements Salvager.
func (f SalvagerFunc) Salvage(raw string) (string, bool) { return f(raw) }

// The closing quote is optional so truncated arguments still match.
var messageField = regexp.MustCompile(`"message"\s*:\s*"((?:[^"\\]|\\.)*)`)

// RegexSalvager pulls the "message" string out of partial JSON.
type RegexSalvager struct{}

// Salvage implements Salvager.
func (RegexSalvager) Salvage(raw string) (string, bool) {
	m := messageField.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	text := unescape(m[1])
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func unescape(s string) string {
	// a dangling backslash means the escape sequence was cut off
	if n := len(s) - len(strings.TrimRight(s, `\`)); n%2 == 1 {
		s = s[:len(s)-1]
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`).Replace(s)
}
