package domain_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/workbench/internal/domain"
)

func textTemplate(text string) domain.Template {
	return domain.Template{Type: domain.TemplateTypeText, Text: text}
}

func TestExtractVariables(t *testing.T) {
	t.Run("should return unique names in first-occurrence order", func(t *testing.T) {
		names := domain.ExtractVariables(textTemplate("{{a}} and {{a}} {{b}}"))
		require.Equal(t, []string{"a", "b"}, names)
	})

	t.Run("should return empty slice for template without placeholders", func(t *testing.T) {
		names := domain.ExtractVariables(textTemplate("no variables here"))
		require.Empty(t, names)
	})

	t.Run("should accept letters digits and underscores", func(t *testing.T) {
		names := domain.ExtractVariables(textTemplate("{{user_name2}} {{x}}"))
		require.Equal(t, []string{"user_name2", "x"}, names)
	})

	t.Run("should ignore malformed placeholders", func(t *testing.T) {
		names := domain.ExtractVariables(textTemplate("{name} {{bad name}} {{{ok}}}"))
		require.Equal(t, []string{"ok"}, names)
	})

	t.Run("should union chat messages preserving message order", func(t *testing.T) {
		tmpl := domain.Template{
			Type: domain.TemplateTypeChat,
			Messages: []domain.Message{
				{Role: "system", Content: "You help {{persona}}."},
				{Role: "user", Content: "{{question}} about {{persona}}"},
			},
		}

		names := domain.ExtractVariables(tmpl)
		require.Equal(t, []string{"persona", "question"}, names)
	})
}

func TestSubstitute(t *testing.T) {
	t.Run("should replace bound placeholders", func(t *testing.T) {
		result := domain.SubstituteText("Hi {{name}}", domain.Bindings{"name": "Ann"})
		require.Equal(t, "Hi Ann", result)
	})

	t.Run("should leave unresolved placeholders verbatim", func(t *testing.T) {
		result := domain.SubstituteText("Hi {{name}}", domain.Bindings{})
		require.Equal(t, "Hi {{name}}", result)
	})

	t.Run("should treat empty binding as unresolved", func(t *testing.T) {
		result := domain.SubstituteText("Hi {{name}}", domain.Bindings{"name": ""})
		require.Equal(t, "Hi {{name}}", result)
	})

	t.Run("should replace every occurrence of a bound name", func(t *testing.T) {
		result := domain.SubstituteText("{{x}} {{y}} {{x}}", domain.Bindings{"x": "1"})
		require.Equal(t, "1 {{y}} 1", result)
	})

	t.Run("should not re-expand placeholder syntax in bound values", func(t *testing.T) {
		vars := domain.Bindings{"a": "{{b}}", "b": "boom"}
		result := domain.SubstituteText("{{a}}", vars)

		// One pass only: the injected {{b}} stays as-is.
		require.Equal(t, "{{b}}", result)
	})

	t.Run("should substitute each chat message independently", func(t *testing.T) {
		tmpl := domain.Template{
			Type: domain.TemplateTypeChat,
			Messages: []domain.Message{
				{Role: "system", Content: "Act as {{role}}."},
				{Role: "user", Content: "{{question}}"},
			},
		}

		resolved := domain.Substitute(tmpl, domain.Bindings{"role": "a critic"})

		require.Equal(t, "Act as a critic.", resolved.Messages[0].Content)
		require.Equal(t, "{{question}}", resolved.Messages[1].Content)
	})

	t.Run("should not mutate the input template", func(t *testing.T) {
		tmpl := domain.Template{
			Type:     domain.TemplateTypeChat,
			Messages: []domain.Message{{Role: "user", Content: "{{q}}"}},
		}

		domain.Substitute(tmpl, domain.Bindings{"q": "hello"})

		require.Equal(t, "{{q}}", tmpl.Messages[0].Content)
	})
}

func TestPromptMessages(t *testing.T) {
	t.Run("should wrap free text in a single user message", func(t *testing.T) {
		messages := domain.PromptMessages(textTemplate("resolved text"))

		require.Equal(t, []domain.Message{{Role: "user", Content: "resolved text"}}, messages)
	})

	t.Run("should pass chat messages through unchanged", func(t *testing.T) {
		tmpl := domain.Template{
			Type: domain.TemplateTypeChat,
			Messages: []domain.Message{
				{Role: "system", Content: "s"},
				{Role: "user", Content: "u"},
			},
		}

		require.Equal(t, tmpl.Messages, domain.PromptMessages(tmpl))
	})
}

func TestSubstitute_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genBindings := gen.MapOf(gen.Identifier(), gen.AlphaString())

	properties.Property("substitution is idempotent for placeholder-free values", prop.ForAll(
		func(text string, vars map[string]string) bool {
			once := domain.SubstituteText(text, vars)
			twice := domain.SubstituteText(once, vars)
			return once == twice
		},
		gen.AlphaString(),
		genBindings,
	))

	properties.Property("every extracted name is resolvable", prop.ForAll(
		func(names []string) bool {
			text := ""
			vars := domain.Bindings{}
			for _, name := range names {
				text += "{{" + name + "}} "
				vars[name] = "v"
			}
			resolved := domain.SubstituteText(text, vars)
			return len(domain.ExtractVariables(textTemplate(resolved))) == 0
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
