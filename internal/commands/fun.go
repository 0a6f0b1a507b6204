package commands

import (
	"strings"
	"sync"
	"unicode"
)

const (
	layoutRU = "йцукенгшщзхъфывапролджэячсмитьбю."
	layoutEN = "qwertyuiop[]asdfghjkl;'zxcvbnm,./"
)

var ruToEN, enToRU = buildLayouts()

func buildLayouts() (map[rune]rune, map[rune]rune) {
	ru := []rune(layoutRU)
	en := []rune(layoutEN)
	ruUpper := []rune(strings.ToUpper(layoutRU))
	enUpper := []rune(strings.ToUpper(layoutEN))

	toEN := make(map[rune]rune, 2*len(ru))
	toRU := make(map[rune]rune, 2*len(ru))
	for i := range ru {
		toEN[ru[i]] = en[i]
		toEN[ruUpper[i]] = enUpper[i]
		toRU[en[i]] = ru[i]
		toRU[enUpper[i]] = ruUpper[i]
	}
	return toEN, toRU
}

// SwitchLayout re-types text as if it had been typed on the other keyboard
// layout (RU <-> EN). Characters with no counterpart pass through.
func SwitchLayout(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if m, ok := ruToEN[r]; ok {
			b.WriteRune(m)
		} else if m, ok := enToRU[r]; ok {
			b.WriteRune(m)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mock alternates the case of letters, starting upper.
func Mock(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	upper := true
	for _, r := range text {
		if unicode.IsLetter(r) {
			if upper {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			upper = !upper
		}
		b.WriteRune(r)
	}
	return b.String()
}

// kawaii tracks per-user kawaii mode.
type kawaii struct {
	mu sync.Mutex
	on map[int64]bool
}

func newKawaii() *kawaii {
	return &kawaii{on: make(map[int64]bool)}
}

// Toggle flips the mode for userID and returns the new state.
func (k *kawaii) Toggle(userID int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.on[userID] = !k.on[userID]
	return k.on[userID]
}

func (k *kawaii) Enabled(userID int64) bool {
	if userID == 0 {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.on[userID]
}

func kawaiiState(on bool) string {
	if on {
		return "🐾 Kawaii-режим <b>включён</b>."
	}
	return "🐾 Kawaii-режим <b>выключен</b>."
}
