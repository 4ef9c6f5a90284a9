package encode

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxCharsPerWord is the longest word WordPiece tries to split; longer words
// become [UNK].
const maxCharsPerWord = 100

// WordPiece is an uncased BERT tokenizer.
//
// Thread-safety: Encode only reads the vocabulary and may be called
// concurrently.
type WordPiece struct {
	vocab     *Vocab
	maxLength int
	cls, sep  int
	unk       int
}

// NewWordPiece creates a tokenizer over vocab. maxLength bounds the encoded
// sequence including [CLS] and [SEP]. The vocabulary must contain [CLS],
// [SEP] and [UNK].
func NewWordPiece(vocab *Vocab, maxLength int) (*WordPiece, error) {
	if maxLength < 2 {
		return nil, fmt.Errorf("max length must be at least 2, got %d", maxLength)
	}
	w := &WordPiece{vocab: vocab, maxLength: maxLength}
	for tok, dst := range map[string]*int{ClsToken: &w.cls, SepToken: &w.sep, UnkToken: &w.unk} {
		id, ok := vocab.ID(tok)
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", tok)
		}
		*dst = id
	}
	return w, nil
}

// Encode implements Encoder. Sequences longer than the max length are
// truncated before [SEP] is appended.
func (w *WordPiece) Encode(text string) (Encoding, error) {
	var pieces []string
	for _, word := range basicTokenize(text) {
		pieces = append(pieces, w.split(word)...)
	}
	if len(pieces) > w.maxLength-2 {
		pieces = pieces[:w.maxLength-2]
	}

	enc := newEncoding(len(pieces) + 2)
	enc.add(ClsToken, w.cls)
	for _, p := range pieces {
		id, ok := w.vocab.ID(p)
		if !ok {
			id = w.unk
		}
		enc.add(p, id)
	}
	enc.add(SepToken, w.sep)
	return enc.Encoding, nil
}

// split breaks word into the longest vocabulary pieces, left to right.
// A word with any unmatched remainder becomes a single [UNK].
func (w *WordPiece) split(word string) []string {
	chars := []rune(word)
	if len(chars) > maxCharsPerWord {
		return []string{UnkToken}
	}

	var pieces []string
	for start := 0; start < len(chars); {
		end := len(chars)
		match := ""
		for ; end > start; end-- {
			candidate := string(chars[start:end])
			if start > 0 {
				candidate = "##" + candidate
			}
			if _, ok := w.vocab.ID(candidate); ok {
				match = candidate
				break
			}
		}
		if match == "" {
			return []string{UnkToken}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}

// basicTokenize cleans, lower-cases and accent-strips text, then splits it
// on whitespace and punctuation. CJK ideographs become single tokens.
func basicTokenize(text string) []string {
	var cleaned strings.Builder
	for _, r := range text {
		switch {
		case r == 0 || r == 0xfffd || isControl(r):
			continue
		case isCJK(r):
			cleaned.WriteRune(' ')
			cleaned.WriteRune(r)
			cleaned.WriteRune(' ')
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		default:
			cleaned.WriteRune(r)
		}
	}

	// Chained transformers carry state, so each call builds its own.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

	var out []string
	for _, word := range strings.Fields(cleaned.String()) {
		word = strings.ToLower(word)
		if s, _, err := transform.String(stripAccents, word); err == nil {
			word = s
		}
		out = append(out, splitPunct(word)...)
	}
	return out
}

// splitPunct makes every punctuation character its own token.
func splitPunct(word string) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, r := range word {
		if !isPunct(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
		out = append(out, string(r))
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// isPunct treats all non-alphanumeric ASCII as punctuation, like BERT does
// for characters such as '^' and '$'.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
