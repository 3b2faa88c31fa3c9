package game

import "math/rand/v2"

const maskRune = '_'

// hint is the progressively revealed form of the secret word.
type hint struct {
	word []rune
	mask []rune
}

// newHint reveals the first and last character. Spaces are never masked.
func newHint(word string) *hint {
	w := []rune(word)
	m := make([]rune, len(w))
	for i, r := range w {
		switch {
		case i == 0, i == len(w)-1, r == ' ':
			m[i] = r
		default:
			m[i] = maskRune
		}
	}
	return &hint{word: w, mask: m}
}

// revealOne uncovers one more interior character chosen at random. Words of two
// characters or less have no interior and are left as they are.
func (h *hint) revealOne(rnd *rand.Rand) bool {
	if len(h.word) <= 2 {
		return false
	}

	hidden := make([]int, 0, len(h.mask))
	for i := 1; i < len(h.mask)-1; i++ {
		if h.mask[i] == maskRune {
			hidden = append(hidden, i)
		}
	}
	if len(hidden) == 0 {
		return false
	}

	i := hidden[rnd.IntN(len(hidden))]
	h.mask[i] = h.word[i]
	return true
}

func (h *hint) String() string {
	return string(h.mask)
}
