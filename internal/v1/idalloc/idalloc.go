// Package idalloc generates room codes and assigns collision-free colors and
// emoji from fixed palettes. It has no knowledge of rooms or participants;
// callers own uniqueness against their own registries.
package idalloc

import (
	"crypto/rand"
	"math/big"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const roomCodeLength = 4

// ColorPalette is the fixed set of colors offered to participants.
var ColorPalette = []string{
	"#E63946", "#F1A208", "#2A9D8F", "#457B9D",
	"#8338EC", "#FB5607", "#06D6A0", "#3A86FF",
}

// EmojiPalette is the fixed set of emoji offered to participants.
var EmojiPalette = []string{
	"🦊", "🐸", "🐙", "🦖", "🐵", "🦥", "🐝", "🦄",
}

// NewRoomCode returns four uniformly random uppercase Latin letters.
// Callers are responsible for rejecting codes already in use and retrying.
func NewRoomCode() string {
	out := make([]byte, roomCodeLength)
	for i := range out {
		out[i] = roomCodeAlphabet[randIndex(len(roomCodeAlphabet))]
	}
	return string(out)
}

// AssignColor returns a color from ColorPalette not present in taken,
// falling back to a uniformly random pick when every color is taken.
func AssignColor(taken map[string]bool) string {
	return assignFrom(ColorPalette, taken)
}

// AssignEmoji returns an emoji from EmojiPalette not present in taken,
// falling back to a uniformly random pick when every emoji is taken.
func AssignEmoji(taken map[string]bool) string {
	return assignFrom(EmojiPalette, taken)
}

func assignFrom(palette []string, taken map[string]bool) string {
	for _, candidate := range palette {
		if !taken[candidate] {
			return candidate
		}
	}
	return palette[randIndex(len(palette))]
}

func randIndex(n int) int {
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		// crypto/rand failure is effectively unreachable on supported
		// platforms; fall back to the first slot rather than panic.
		return 0
	}
	return int(v.Int64())
}
