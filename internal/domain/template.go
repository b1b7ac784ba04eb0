package domain

import "regexp"

// placeholderPattern matches {{identifier}} where identifier is letters,
// digits, or underscore. The syntax is part of the wire contract with
// authors and must not change.
var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ExtractVariables returns the unique variable names referenced by the
// template, in first-occurrence order. For chat templates, messages are
// scanned in order and the per-message results unioned before de-dup.
func ExtractVariables(tmpl Template) []string {
	seen := make(map[string]struct{})
	names := []string{}

	collect := func(content string) {
		for _, match := range placeholderPattern.FindAllStringSubmatch(content, -1) {
			name := match[1]
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	if tmpl.Type == TemplateTypeChat {
		for _, msg := range tmpl.Messages {
			collect(msg.Content)
		}
		return names
	}

	collect(tmpl.Text)
	return names
}

// SubstituteText replaces every placeholder occurrence with its bound value.
// A name with no binding, or an empty binding, is left verbatim so an author
// can always see which variables remain unresolved. Substitution is a single
// pass: a bound value that itself contains placeholder syntax is not
// re-expanded.
func SubstituteText(s string, vars Bindings) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		return match
	})
}

// Substitute applies SubstituteText to a template, returning a resolved copy.
// The input template is never mutated.
func Substitute(tmpl Template, vars Bindings) Template {
	if tmpl.Type == TemplateTypeChat {
		messages := make([]Message, len(tmpl.Messages))
		for i, msg := range tmpl.Messages {
			messages[i] = Message{
				Role:    msg.Role,
				Content: SubstituteText(msg.Content, vars),
			}
		}
		return Template{Type: TemplateTypeChat, Messages: messages}
	}

	return Template{Type: tmpl.Type, Text: SubstituteText(tmpl.Text, vars)}
}

// PromptMessages converts a resolved template into the message list sent to
// providers. Free-text templates become a single user message.
func PromptMessages(tmpl Template) []Message {
	if tmpl.Type == TemplateTypeChat {
		return tmpl.Messages
	}
	return []Message{{Role: "user", Content: tmpl.Text}}
}
