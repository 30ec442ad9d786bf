package chunking

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// charsPerToken is the rough estimate used across the pipeline: one token
// per four characters. Not a real tokenizer.
const charsPerToken = 4

// EstimateTokens estimates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// SplitSentences splits text at `.`, `!` or `?` followed by whitespace,
// suppressing false splits after abbreviations like "U.S." or "Mr.".
// Text with no detectable boundary comes back as a single sentence.
func SplitSentences(text string) []string {
	runes := []rune(text)
	sentences := make([]string, 0, 8)
	start := 0

	for i := 0; i < len(runes)-1; i++ {
		if !isBoundaryPunct(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if suppressSplit(runes, i) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isBoundaryPunct(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// suppressSplit holds the boundary when the punctuation at index i closes an
// abbreviation rather than a sentence: a dotted single-letter run ("U.S.",
// "e.g.") or a capitalized title ("Mr.", "Dr.").
func suppressSplit(runes []rune, i int) bool {
	if runes[i] != '.' {
		return false
	}
	// letter '.' letter '.' ending at i, as in "U.S."
	if i >= 3 && isWordRune(runes[i-1]) && runes[i-2] == '.' && isWordRune(runes[i-3]) {
		return true
	}
	// upper lower '.' ending at i, as in "Mr."
	if i >= 2 && unicode.IsUpper(runes[i-2]) && unicode.IsLower(runes[i-1]) {
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
