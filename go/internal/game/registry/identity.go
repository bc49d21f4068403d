package registry

import (
	"math/rand"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest display name kept, in runes.
const MaxNameLength = 32

// Palette is cycled through in join order.
var Palette = []string{
	"#e6194B", "#0082c8", "#3cb44b", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#d2f53c", "#fabebe", "#008080",
	"#e6beff", "#aa6e28", "#800000", "#aaffc3", "#808000",
	"#ffd8b1", "#000080", "#808080", "#FFFFFF", "#000000",
}

// Emojis is the avatar pool. Emojis are unique within a room until the pool runs out.
var Emojis = []string{"🐱", "🐶", "🦊", "🐼", "🐸", "🐵", "🐧", "🦄", "🐯", "🐰", "🐙", "🐝", "🐢", "🐞", "🦁", "🦉"}

// SanitizeName trims raw, truncates it to MaxNameLength runes and falls back when empty.
func SanitizeName(raw, fallback string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return fallback
	}
	if utf8.RuneCountInString(cleaned) > MaxNameLength {
		cleaned = string([]rune(cleaned)[:MaxNameLength])
	}
	return cleaned
}

// pickColor starts at the join slot and walks the palette to the first color nobody holds.
func pickColor(slot int, used map[string]bool) string {
	for i := 0; i < len(Palette); i++ {
		c := Palette[(slot+i)%len(Palette)]
		if !used[c] {
			return c
		}
	}
	return Palette[slot%len(Palette)]
}

func pickEmoji(rng *rand.Rand, used map[string]bool) string {
	pool := make([]string, 0, len(Emojis))
	for _, e := range Emojis {
		if !used[e] {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		pool = Emojis
	}
	return pool[rng.Intn(len(pool))]
}
