// Package encode turns schema text and questions into model input: word
// pieces, vocabulary ids and an attention mask.
//
// WordPiece follows the uncased BERT recipe: clean control characters, split
// CJK ideographs, lower-case, strip accents, split punctuation, then greedy
// longest-match word pieces with "##" continuations. HashingEncoder is the
// fallback when no vocabulary file is configured.
package encode

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Special tokens.
const (
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"
)

// Vocab maps word pieces to ids. Ids are line numbers of vocab.txt.
type Vocab struct {
	tokens []string
	ids    map[string]int
}

// NewVocab builds a vocabulary where tokens[i] has id i. Later duplicates
// keep the first id.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{tokens: tokens, ids: make(map[string]int, len(tokens))}
	for i, tok := range tokens {
		if _, ok := v.ids[tok]; !ok {
			v.ids[tok] = i
		}
	}
	return v
}

// LoadVocab reads a vocab.txt file with one token per line.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	var tokens []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return NewVocab(tokens), nil
}

// ID returns the id of tok.
func (v *Vocab) ID(tok string) (int, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Token returns the token with id, or "" when out of range.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

// Len returns the number of entries.
func (v *Vocab) Len() int {
	return len(v.tokens)
}
