// Package moderation censors forbidden words in outgoing message text.
// Matching is case-insensitive via an Aho-Corasick automaton built once
// at startup; censoring replaces the matched runes in place so spacing
// and the rest of the line are preserved.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"chat-house/errors"
)

type Censor struct {
	machine     *goahocorasick.Machine
	replacement rune
}

// NewCensor builds the automaton from the given word list.
func NewCensor(words []string, replacement rune) (*Censor, error) {
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		patterns = append(patterns, lowerRunes([]rune(word)))
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: machine, replacement: replacement}, nil
}

// Apply replaces every forbidden word in text with the replacement rune.
func (c *Censor) Apply(text string) string {
	original := []rune(text)
	spans := c.machine.MultiPatternSearch(lowerRunes(original), false)
	if len(spans) == 0 {
		return text
	}
	for _, span := range spans {
		end := span.Pos + len(span.Word)
		if span.Pos < 0 || end > len(original) {
			continue
		}
		for i := span.Pos; i < end; i++ {
			original[i] = c.replacement
		}
	}
	return string(original)
}

func lowerRunes(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(r)
	}
	return out
}
