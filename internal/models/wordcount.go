package models

import (
	"strings"
	"unicode/utf8"
)

type WordCount struct {
	Characters int
	Words      int
}

// CountWords counts runes and whitespace-separated words.
func CountWords(text string) WordCount {
	return WordCount{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
	}
}
