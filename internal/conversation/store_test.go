package conversation

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []Part{TextPart(text)}}
}

func TestStoreGetOrCreateIsLazyAndStable(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	first := store.GetOrCreate("42")
	second := store.GetOrCreate("42")

	require.NotEmpty(t, first.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "42", first.ChatID)
	assert.Empty(t, first.Turns)
	assert.Equal(t, Stats{Sessions: 1}, store.Stats())
}

func TestStoreAppendUnknownChat(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	err := store.Append("missing", textTurn(RoleUser, "hi"))
	if !errors.Is(err, ErrUnknownChat) {
		t.Fatalf("expected ErrUnknownChat, got %v", err)
	}
}

func TestStoreAppendRejectsEmptyTurn(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	store.GetOrCreate("1")
	err := store.Append("1", textTurn(RoleUser, "ok"), Turn{Role: RoleModel})
	require.ErrorIs(t, err, ErrEmptyTurn)
	assert.Empty(t, store.Turns("1"), "a rejected batch must not be partially applied")
}

func TestStoreExchangesAlternateRoles(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	const exchanges = 5
	store.GetOrCreate("chat")
	for i := 0; i < exchanges; i++ {
		err := store.Append("chat",
			textTurn(RoleUser, fmt.Sprintf("question %d", i)),
			textTurn(RoleModel, fmt.Sprintf("answer %d", i)),
		)
		require.NoError(t, err)
	}

	turns := store.Turns("chat")
	require.Len(t, turns, 2*exchanges)
	for i, turn := range turns {
		want := RoleUser
		if i%2 == 1 {
			want = RoleModel
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
		assert.NotEmpty(t, turn.ID)
		assert.False(t, turn.CreatedAt.IsZero())
	}
	assert.Equal(t, "question 0", turns[0].Text())
	assert.Equal(t, "answer 4", turns[9].Text())
}

func TestStoreClearResetsHistoryAndTemperature(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	store.GetOrCreate("7")
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append("7", textTurn(RoleUser, "q"), textTurn(RoleModel, "a")))
	}
	store.SetTemperature("7", 0.4)

	store.Clear("7")
	store.Clear("7")

	snap := store.GetOrCreate("7")
	assert.Empty(t, snap.Turns)
	assert.Nil(t, snap.Temperature)
	_, ok := store.Temperature("7")
	assert.False(t, ok)
}

func TestStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	store.GetOrCreate("c")
	require.NoError(t, store.Append("c", textTurn(RoleUser, "original")))

	turns := store.Turns("c")
	turns[0].Parts[0].Text = "mutated"

	assert.Equal(t, "original", store.Turns("c")[0].Text())
}

func TestStoreTemperature(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	_, ok := store.Temperature("x")
	assert.False(t, ok)

	store.SetTemperature("x", 1.5)
	got, ok := store.Temperature("x")
	require.True(t, ok)
	assert.InDelta(t, 1.5, got, 1e-6)
}

func TestStoreConcurrentAppendsPerChat(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	chats := []string{"a", "b", "c"}
	for _, id := range chats {
		store.GetOrCreate(id)
	}

	var wg sync.WaitGroup
	for _, id := range chats {
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(chatID string) {
				defer wg.Done()
				if err := store.Append(chatID, textTurn(RoleUser, "q"), textTurn(RoleModel, "a")); err != nil {
					t.Errorf("append failed: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range chats {
		turns := store.Turns(id)
		require.Len(t, turns, 40)
		for i := 0; i < len(turns); i += 2 {
			assert.Equal(t, RoleUser, turns[i].Role)
			assert.Equal(t, RoleModel, turns[i+1].Role)
		}
	}
	assert.Equal(t, Stats{Sessions: 3, Turns: 120}, store.Stats())
}

func TestStoreClose(t *testing.T) {
	t.Parallel()

	store := NewStore(nil)
	store.GetOrCreate("1")
	store.GetOrCreate("2")
	store.Close()
	assert.Equal(t, Stats{}, store.Stats())
}
