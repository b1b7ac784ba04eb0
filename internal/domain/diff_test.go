package domain_test

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/workbench/internal/domain"
)

func TestComputeDiff(t *testing.T) {
	t.Run("should mark identical texts as unchanged", func(t *testing.T) {
		result := domain.ComputeDiff("a\nb\nc", "a\nb\nc")

		require.False(t, result.HasChanges)
		require.Zero(t, result.AddedCount)
		require.Zero(t, result.RemovedCount)
		require.Len(t, result.Lines, 3)
		for i, line := range result.Lines {
			require.Equal(t, domain.DiffUnchanged, line.Kind)
			require.Equal(t, i+1, line.LineNumber)
		}
	})

	t.Run("should classify a pure insertion", func(t *testing.T) {
		result := domain.ComputeDiff("a\nc", "a\nb\nc")

		require.True(t, result.HasChanges)
		require.Equal(t, 1, result.AddedCount)
		require.Zero(t, result.RemovedCount)
		require.Equal(t, []domain.DiffLine{
			{Content: "a", Kind: domain.DiffUnchanged, LineNumber: 1},
			{Content: "b", Kind: domain.DiffAdded, LineNumber: 2},
			{Content: "c", Kind: domain.DiffUnchanged, LineNumber: 3},
		}, result.Lines)
	})

	t.Run("should classify a pure deletion without numbering it", func(t *testing.T) {
		result := domain.ComputeDiff("a\nb\nc", "a\nc")

		require.Equal(t, 1, result.RemovedCount)
		require.Zero(t, result.AddedCount)
		require.Equal(t, []domain.DiffLine{
			{Content: "a", Kind: domain.DiffUnchanged, LineNumber: 1},
			{Content: "b", Kind: domain.DiffRemoved},
			{Content: "c", Kind: domain.DiffUnchanged, LineNumber: 2},
		}, result.Lines)
	})

	t.Run("should render a replacement as removal then addition", func(t *testing.T) {
		result := domain.ComputeDiff("a\nold\nc", "a\nnew\nc")

		require.Equal(t, []domain.DiffLine{
			{Content: "a", Kind: domain.DiffUnchanged, LineNumber: 1},
			{Content: "old", Kind: domain.DiffRemoved},
			{Content: "new", Kind: domain.DiffAdded, LineNumber: 2},
			{Content: "c", Kind: domain.DiffUnchanged, LineNumber: 3},
		}, result.Lines)
	})

	t.Run("should treat reordered lines positionally", func(t *testing.T) {
		result := domain.ComputeDiff("A\nB", "B\nA")

		// Alignment keeps one line common; the other shows up as a
		// remove/add pair even though the line sets are identical.
		require.True(t, result.HasChanges)
		require.Equal(t, 1, result.AddedCount)
		require.Equal(t, 1, result.RemovedCount)
	})

	t.Run("should handle comparison against empty text", func(t *testing.T) {
		result := domain.ComputeDiff("", "a\nb")

		// The empty side still contributes its one empty line.
		require.Equal(t, 2, result.AddedCount)
		require.Equal(t, 1, result.RemovedCount)
	})

	t.Run("should number added and unchanged lines contiguously", func(t *testing.T) {
		result := domain.ComputeDiff("x\ny\nz", "x\nq\nz\nw")

		want := 0
		for _, line := range result.Lines {
			if line.Kind == domain.DiffRemoved {
				require.Zero(t, line.LineNumber)
				continue
			}
			want++
			require.Equal(t, want, line.LineNumber)
		}
	})
}

func TestComputeDiff_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genText := gen.SliceOf(gen.OneConstOf("a", "b", "c", "d")).Map(
		func(lines []string) string { return strings.Join(lines, "\n") })

	properties.Property("diff against self is empty", prop.ForAll(
		func(text string) bool {
			result := domain.ComputeDiff(text, text)
			return !result.HasChanges && result.AddedCount == 0 && result.RemovedCount == 0
		},
		genText,
	))

	properties.Property("counts are symmetric under swap", prop.ForAll(
		func(oldText, newText string) bool {
			forward := domain.ComputeDiff(oldText, newText)
			backward := domain.ComputeDiff(newText, oldText)
			return forward.AddedCount == backward.RemovedCount &&
				forward.RemovedCount == backward.AddedCount
		},
		genText,
		genText,
	))

	properties.Property("added lines reconstruct the new text", prop.ForAll(
		func(oldText, newText string) bool {
			result := domain.ComputeDiff(oldText, newText)
			var kept []string
			for _, line := range result.Lines {
				if line.Kind != domain.DiffRemoved {
					kept = append(kept, line.Content)
				}
			}
			return strings.Join(kept, "\n") == newText
		},
		genText,
		genText,
	))

	properties.TestingRun(t)
}

func TestCountChanges(t *testing.T) {
	t.Run("should count lines unique to either side", func(t *testing.T) {
		require.Equal(t, 2, domain.CountChanges("a\nb", "a\nc"))
	})

	t.Run("should report zero for reordered identical lines", func(t *testing.T) {
		require.Zero(t, domain.CountChanges("A\nB", "B\nA"))
	})

	t.Run("should report zero for identical texts", func(t *testing.T) {
		require.Zero(t, domain.CountChanges("x\ny", "x\ny"))
	})

	t.Run("should ignore duplicate copies of a shared line", func(t *testing.T) {
		// Content-keyed: duplicates collapse into the set.
		require.Zero(t, domain.CountChanges("a\na\nb", "a\nb\nb"))
	})
}
