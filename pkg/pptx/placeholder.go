package pptx

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholders is a compiled set of placeholder keys. A key matches inside
// curly or square brackets, case-insensitively, with optional inner
// whitespace, and with underscores and spaces treated as interchangeable:
// the key "event_date" matches "{EVENT DATE}" and "[ event_date ]".
type Placeholders struct {
	keys     []string
	patterns []*regexp.Regexp
}

// CompilePlaceholders builds the matcher set once for the given keys.
// Keys are applied in the order given.
func CompilePlaceholders(keys ...string) *Placeholders {
	p := &Placeholders{
		keys:     make([]string, 0, len(keys)),
		patterns: make([]*regexp.Regexp, 0, len(keys)),
	}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		p.keys = append(p.keys, key)
		p.patterns = append(p.patterns, placeholderPattern(key))
	}
	return p
}

// Keys returns the compiled keys in application order.
func (p *Placeholders) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Replace substitutes every mapped placeholder in text. Keys without a value
// and bracket tokens that match no key are left untouched.
func (p *Placeholders) Replace(text string, values map[string]string) string {
	if !strings.ContainsAny(text, "{[") {
		return text
	}
	for i, key := range p.keys {
		value, ok := values[key]
		if !ok {
			continue
		}
		text = p.patterns[i].ReplaceAllLiteralString(text, value)
	}
	return text
}

func placeholderPattern(key string) *regexp.Regexp {
	aliases := map[string]struct{}{key: {}}
	if strings.Contains(key, "_") {
		aliases[strings.ReplaceAll(key, "_", " ")] = struct{}{}
	} else {
		aliases[strings.ReplaceAll(key, " ", "_")] = struct{}{}
	}

	quoted := make([]string, 0, len(aliases))
	for alias := range aliases {
		quoted = append(quoted, regexp.QuoteMeta(alias))
	}
	sort.Slice(quoted, func(i, j int) bool {
		if len(quoted[i]) != len(quoted[j]) {
			return len(quoted[i]) > len(quoted[j])
		}
		return quoted[i] < quoted[j]
	})

	alternation := strings.Join(quoted, "|")
	return regexp.MustCompile(`(?i)\{\s*(?:` + alternation + `)\s*\}|\[\s*(?:` + alternation + `)\s*\]`)
}
