package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func TestSaveConversationRoundTrips(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()

	c := domain.Conversation{
		ID:       "conv-1",
		Title:    "how do I fix the bug",
		Messages: []domain.ConversationMessage{{Role: "user", Content: "how do I fix the bug"}},
		Metadata: map[string]interface{}{"success": true},
	}
	require.NoError(t, idx.SaveConversation(ctx, c))

	got, err := idx.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, c.Title, got.Title)
	assert.Equal(t, c.Messages, got.Messages)
	assert.Equal(t, true, got.Metadata["success"])
}

func TestSaveConversationUpsertsById(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, idx.SaveConversation(ctx, domain.Conversation{ID: "conv-1", Title: "first"}))
	require.NoError(t, idx.SaveConversation(ctx, domain.Conversation{ID: "conv-1", Title: "second"}))

	got, err := idx.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)

	all, err := idx.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upsert must not create a second row")
}

func TestGetConversationMissingReturnsNotFound(t *testing.T) {
	idx := newTestIndexer(t)
	_, err := idx.GetConversation(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSettingsRoundTripAndMissingKey(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()

	_, err := idx.GetSetting(ctx, "active_profile")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, idx.SetSetting(ctx, "active_profile", "balanced"))
	v, err := idx.GetSetting(ctx, "active_profile")
	require.NoError(t, err)
	assert.Equal(t, "balanced", v)

	require.NoError(t, idx.SetSetting(ctx, "active_profile", "aggressive"))
	v, err = idx.GetSetting(ctx, "active_profile")
	require.NoError(t, err)
	assert.Equal(t, "aggressive", v, "SetSetting must overwrite, not duplicate")
}
