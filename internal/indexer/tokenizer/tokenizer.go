// Package tokenizer turns text into stemmed index terms. A raw token is a run
// of ASCII letters of length three or more after lower-casing; digits and
// punctuation always separate tokens. The same rules serve the build and the
// query path so both compute the same term, and so the same shard, for any
// input word.
package tokenizer

import "strings"

// MinTokenLength is the shortest run of letters kept as a token.
const MinTokenLength = 3

// Token is a stemmed term and its position among the document's kept tokens.
type Token struct {
	Term     string
	Position int
}

// Tokenize splits text into raw, unstemmed tokens.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/6)
	start := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 'a' && c <= 'z' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= MinTokenLength {
			tokens = append(tokens, text[start:i])
		}
		start = -1
	}
	if start >= 0 && len(text)-start >= MinTokenLength {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// Tokens returns the stemmed tokens of text with their positions.
func (s *Stemmer) Tokens(text string) []Token {
	raw := Tokenize(text)
	tokens := make([]Token, len(raw))
	for i, word := range raw {
		tokens[i] = Token{Term: s.Stem(word), Position: i}
	}
	return tokens
}

// Terms returns the stemmed token sequence of text.
func (s *Stemmer) Terms(text string) []string {
	raw := Tokenize(text)
	for i, word := range raw {
		raw[i] = s.Stem(word)
	}
	return raw
}

// ComputeTextFrequencies returns the number of tokens in text and the count
// of each stemmed term.
func (s *Stemmer) ComputeTextFrequencies(text string) (int, map[string]int) {
	raw := Tokenize(text)
	freq := make(map[string]int, len(raw)/2)
	for _, word := range raw {
		freq[s.Stem(word)]++
	}
	return len(raw), freq
}

// UnionFrequencies adds every count in src into dst.
func UnionFrequencies(dst, src map[string]int) {
	for term, n := range src {
		dst[term] += n
	}
}
