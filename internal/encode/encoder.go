package encode

import (
	"fmt"
	"hash/fnv"
)

// Encoding is the model input for one text.
type Encoding struct {
	Tokens        []string `json:"tokens"`
	InputIDs      []int    `json:"input_ids"`
	AttentionMask []int    `json:"attention_mask"`
}

// Len returns the number of positions, special tokens included.
func (e Encoding) Len() int {
	return len(e.InputIDs)
}

// Encoder converts text to an Encoding.
type Encoder interface {
	Encode(text string) (Encoding, error)
}

// EncodeQuestion encodes a natural language question on its own.
func EncodeQuestion(enc Encoder, question string) (Encoding, error) {
	return enc.Encode(question)
}

// EncodeInput encodes schema text followed by the question, separated by a
// single space, as one sequence.
func EncodeInput(enc Encoder, schemaText, question string) (Encoding, error) {
	return enc.Encode(schemaText + " " + question)
}

// DefaultMaxLength is the sequence limit of BERT-base models.
const DefaultMaxLength = 512

// HashingEncoder maps word pieces to ids by hashing, so the pipeline runs
// without a vocabulary file. Ids 0-3 are [PAD], [UNK], [CLS] and [SEP].
type HashingEncoder struct {
	buckets   int
	maxLength int
}

const reservedIDs = 4

// NewHashingEncoder creates a HashingEncoder with buckets ids in total.
func NewHashingEncoder(buckets, maxLength int) (*HashingEncoder, error) {
	if buckets <= reservedIDs {
		return nil, fmt.Errorf("hashing encoder needs more than %d buckets, got %d", reservedIDs, buckets)
	}
	if maxLength < 2 {
		return nil, fmt.Errorf("max length must be at least 2, got %d", maxLength)
	}
	return &HashingEncoder{buckets: buckets, maxLength: maxLength}, nil
}

// Encode implements Encoder.
func (h *HashingEncoder) Encode(text string) (Encoding, error) {
	words := basicTokenize(text)
	if len(words) > h.maxLength-2 {
		words = words[:h.maxLength-2]
	}

	enc := newEncoding(len(words) + 2)
	enc.add(ClsToken, 2)
	for _, w := range words {
		enc.add(w, h.id(w))
	}
	enc.add(SepToken, 3)
	return enc.Encoding, nil
}

func (h *HashingEncoder) id(word string) int {
	f := fnv.New32a()
	f.Write([]byte(word))
	return reservedIDs + int(f.Sum32()%uint32(h.buckets-reservedIDs))
}

type encodingBuilder struct {
	Encoding
}

func newEncoding(n int) *encodingBuilder {
	return &encodingBuilder{Encoding{
		Tokens:        make([]string, 0, n),
		InputIDs:      make([]int, 0, n),
		AttentionMask: make([]int, 0, n),
	}}
}

func (b *encodingBuilder) add(tok string, id int) {
	b.Tokens = append(b.Tokens, tok)
	b.InputIDs = append(b.InputIDs, id)
	b.AttentionMask = append(b.AttentionMask, 1)
}
