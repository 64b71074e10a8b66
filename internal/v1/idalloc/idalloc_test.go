package idalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomCodeShape(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewRoomCode()
		require.Len(t, code, roomCodeLength)
		for _, r := range code {
			assert.True(t, r >= 'A' && r <= 'Z', "expected uppercase letter, got %q", r)
		}
	}
}

func TestAssignColorSkipsTaken(t *testing.T) {
	taken := map[string]bool{ColorPalette[0]: true, ColorPalette[1]: true}
	got := AssignColor(taken)
	assert.NotEqual(t, ColorPalette[0], got)
	assert.NotEqual(t, ColorPalette[1], got)
}

func TestAssignEmojiSkipsTaken(t *testing.T) {
	taken := map[string]bool{}
	for _, e := range EmojiPalette[:len(EmojiPalette)-1] {
		taken[e] = true
	}
	got := AssignEmoji(taken)
	assert.Equal(t, EmojiPalette[len(EmojiPalette)-1], got)
}

func TestAssignColorAllTakenDoesNotPanic(t *testing.T) {
	taken := map[string]bool{}
	for _, c := range ColorPalette {
		taken[c] = true
	}
	assert.NotPanics(t, func() { AssignColor(taken) })
}
