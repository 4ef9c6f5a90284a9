package encode

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWordPiece(t *testing.T, maxLength int) *WordPiece {
	t.Helper()
	vocab, err := LoadVocab(filepath.Join("testdata", "vocab.txt"))
	require.NoError(t, err)
	wp, err := NewWordPiece(vocab, maxLength)
	require.NoError(t, err)
	return wp
}

func TestLoadVocab(t *testing.T) {
	vocab, err := LoadVocab(filepath.Join("testdata", "vocab.txt"))
	require.NoError(t, err)

	assert.Equal(t, 23, vocab.Len())
	id, ok := vocab.ID("[CLS]")
	require.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Equal(t, "singer", vocab.Token(22))
	assert.Equal(t, "", vocab.Token(99))
}

func TestLoadVocab_Errors(t *testing.T) {
	_, err := LoadVocab(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = LoadVocab(empty)
	assert.Error(t, err)
}

func TestWordPiece_EncodeQuestion(t *testing.T) {
	wp := testWordPiece(t, DefaultMaxLength)

	enc, err := EncodeQuestion(wp, "How many singers are there?")
	require.NoError(t, err)

	assert.Equal(t, []string{"[CLS]", "how", "many", "singer", "##s", "are", "there", "?", "[SEP]"}, enc.Tokens)
	assert.Equal(t, []int{2, 4, 5, 22, 8, 9, 10, 11, 3}, enc.InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 1}, enc.AttentionMask)
	assert.Equal(t, 9, enc.Len())
}

func TestWordPiece_Normalization(t *testing.T) {
	wp := testWordPiece(t, DefaultMaxLength)

	enc, err := wp.Encode("Caf\u00e9 UNAFFABLE xyz")
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "cafe", "un", "##aff", "##able", "[UNK]", "[SEP]"}, enc.Tokens)
	assert.Equal(t, 1, enc.InputIDs[5])
}

func TestEncodeInput_SchemaAndQuestion(t *testing.T) {
	wp := testWordPiece(t, DefaultMaxLength)

	enc, err := EncodeInput(wp, "singer(name, age);", "how many")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[CLS]", "singer", "(", "name", ",", "age", ")", ";", "how", "many", "[SEP]",
	}, enc.Tokens)
}

func TestWordPiece_Truncation(t *testing.T) {
	wp := testWordPiece(t, 4)

	enc, err := wp.Encode("how many singers")
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "how", "many", "[SEP]"}, enc.Tokens)
	assert.Len(t, enc.AttentionMask, 4)
}

func TestNewWordPiece_Errors(t *testing.T) {
	_, err := NewWordPiece(NewVocab([]string{"[CLS]", "[SEP]"}), 8)
	assert.ErrorContains(t, err, "[UNK]")

	_, err = NewWordPiece(NewVocab([]string{"[CLS]", "[SEP]", "[UNK]"}), 1)
	assert.Error(t, err)
}

func TestWordPiece_Concurrent(t *testing.T) {
	wp := testWordPiece(t, DefaultMaxLength)
	want, err := wp.Encode("how many singers are there?")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := wp.Encode("how many singers are there?")
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestHashingEncoder(t *testing.T) {
	h, err := NewHashingEncoder(1000, 6)
	require.NoError(t, err)

	a, err := h.Encode("How many singers are there?")
	require.NoError(t, err)
	b, err := h.Encode("how many SINGERS are there ?")
	require.NoError(t, err)

	assert.Equal(t, a, b, "hashing is case and spacing insensitive")
	assert.Equal(t, []string{"[CLS]", "how", "many", "singers", "are", "[SEP]"}, a.Tokens)
	assert.Equal(t, 2, a.InputIDs[0])
	assert.Equal(t, 3, a.InputIDs[5])
	for _, id := range a.InputIDs[1:5] {
		assert.GreaterOrEqual(t, id, 4)
		assert.Less(t, id, 1000)
	}

	_, err = NewHashingEncoder(4, 10)
	assert.Error(t, err)
}

func TestBasicTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", ",", "world", "!"}},
		{"na\u00efve\tr\u00e9sum\u00e9\n", []string{"naive", "resume"}},
		{"\u4e2d\u6587ok", []string{"\u4e2d", "\u6587", "ok"}},
		{"a\u200bb", []string{"ab"}},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, basicTokenize(tt.in))
		})
	}
}
