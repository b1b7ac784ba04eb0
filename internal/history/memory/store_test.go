package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promptlab/workbench/internal/domain"
	"github.com/promptlab/workbench/internal/history/memory"
)

func entry(id, versionID string) *domain.RunHistoryEntry {
	return &domain.RunHistoryEntry{
		ID:        id,
		PromptID:  "prompt-1",
		VersionID: versionID,
		CreatedAt: time.Now(),
		Results:   []domain.ExecutionResult{{ConfigID: "a", Output: "out-" + id}},
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("should return saved entries newest first", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.Save(ctx, entry("first", "v1")))
		require.NoError(t, store.Save(ctx, entry("second", "v1")))

		got, err := store.ListByVersion(ctx, "v1", 10)

		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "second", got[0].ID)
		require.Equal(t, "first", got[1].ID)
	})

	t.Run("should bound reads by limit", func(t *testing.T) {
		store := memory.NewStore()
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.Save(ctx, entry(id, "v1")))
		}

		got, err := store.ListByVersion(ctx, "v1", 2)

		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "c", got[0].ID)
	})

	t.Run("should isolate versions", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.Save(ctx, entry("a", "v1")))
		require.NoError(t, store.Save(ctx, entry("b", "v2")))

		got, err := store.ListByVersion(ctx, "v1", 10)

		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "a", got[0].ID)
	})

	t.Run("should return empty list for unknown version", func(t *testing.T) {
		store := memory.NewStore()

		got, err := store.ListByVersion(ctx, "nothing", 10)

		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("should return empty list for non-positive limit", func(t *testing.T) {
		store := memory.NewStore()
		require.NoError(t, store.Save(ctx, entry("a", "v1")))

		got, err := store.ListByVersion(ctx, "v1", 0)

		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("should reject nil entry", func(t *testing.T) {
		store := memory.NewStore()

		require.Error(t, store.Save(ctx, nil))
	})

	t.Run("should reject entry without id", func(t *testing.T) {
		store := memory.NewStore()

		require.Error(t, store.Save(ctx, &domain.RunHistoryEntry{}))
	})

	t.Run("should store a copy immune to caller mutation", func(t *testing.T) {
		store := memory.NewStore()
		e := entry("a", "v1")
		require.NoError(t, store.Save(ctx, e))

		e.Results[0].Output = "mutated"

		got, err := store.ListByVersion(ctx, "v1", 1)
		require.NoError(t, err)
		require.Equal(t, "out-a", got[0].Results[0].Output)
	})
}
