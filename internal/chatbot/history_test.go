package chatbot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/config"
	"github.com/dvloznov/expense-bot/internal/kv"
)

func TestHistory_TrimsToLimit(t *testing.T) {
	store := kv.NewMemoryStore(0)
	defer store.Close()
	h := NewHistory(store, 3, time.Hour)
	ctx := context.Background()

	turns, err := h.Load(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, turns)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Append(ctx, "c", Turn{Role: RoleUser, Content: fmt.Sprint(i)}))
	}

	turns, err = h.Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "2", turns[0].Content)
	assert.Equal(t, "4", turns[2].Content)

	require.NoError(t, h.Clear(ctx, "c"))
	turns, err = h.Load(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestPersonaFromConfig(t *testing.T) {
	p := PersonaFromConfig(config.ChatbotConfig{
		Persona:            "soccer",
		Model:              "gemini-2.5-pro",
		ChatHistoryLimit:   10,
		MaxMessagesPerChat: 50,
		MaxFunctionCalls:   3,
		AudioOutput:        true,
	})

	assert.Equal(t, "soccer", p.Name)
	assert.Equal(t, "gemini-2.5-pro", p.Model)
	assert.Equal(t, 10, p.Limits.ChatHistoryLimit)
	assert.Equal(t, 50, p.Limits.MaxMessagesPerChat)
	assert.Equal(t, 3, p.Limits.MaxFunctionCalls)
	assert.Equal(t, 1000, p.Limits.MaxInputCharacters)
	assert.False(t, p.Features.AudioInput)
	assert.True(t, p.Features.AudioOutput)
}
