package dataset

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clasql/internal/testutil"
)

func TestTokenizeQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"How many singers do we have?", []string{"how", "many", "singers", "do", "we", "have"}},
		{"What's the average age?", []string{"what", "s", "the", "average", "age"}},
		{"Songs by Beyonc\u00e9", []string{"songs", "by", "beyonc\u00e9"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeQuestion(tt.in))
		})
	}
}

func TestTokenizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{
			"SELECT count(*) FROM singer",
			[]string{"select", "count", "(", "*", ")", "from", "singer"},
		},
		{
			"SELECT name ,  country FROM singer WHERE age >= 20;",
			[]string{"select", "name", ",", "country", "from", "singer", "where", "age", ">", "=", "20", ";"},
		},
		{
			"SELECT T2.name FROM a WHERE x != 'B c'",
			[]string{"select", "t2", "name", "from", "a", "where", "x", "=", "b", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeQuery(tt.in))
		})
	}
}

func TestParseSplit(t *testing.T) {
	s, err := ParseSplit("DEV")
	require.NoError(t, err)
	assert.Equal(t, SplitDev, s)
	assert.Equal(t, "dev.json", s.File())
	assert.Equal(t, "database", s.DatabaseDir())

	assert.Equal(t, "train_spider.json", SplitTrain.File())
	assert.Equal(t, "test_database", SplitTest.DatabaseDir())

	_, err = ParseSplit("validation")
	assert.ErrorContains(t, err, "unknown split")
}

func TestLoadExcludeTokens(t *testing.T) {
	tokens, err := LoadExcludeTokens("testdata/exclude_tokens.txt")
	require.NoError(t, err)
	assert.Len(t, tokens, 4)
	assert.Contains(t, tokens, "intersect", "lines are trimmed")
	assert.NotContains(t, tokens, "")
}

func TestLoader_Load(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	l, err := NewLoader(Config{
		SpiderDir:         "testdata/spider",
		Split:             SplitDev,
		ExcludeTokensPath: "testdata/exclude_tokens.txt",
		Logger:            logger,
	})
	require.NoError(t, err)

	examples, stats, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Loaded: 3, Excluded: 1, Invalid: 2, Databases: 2}, stats)
	require.Len(t, examples, 3)

	first := examples[0]
	assert.Equal(t, "concert_singer", first.DBID)
	assert.Equal(t, []string{"how", "many", "singers", "do", "we", "have"}, first.Question)
	assert.Equal(t, []string{"select", "count", "(", "*", ")", "from", "singer"}, first.Query)
	assert.Equal(t, "How many singers do we have?", first.RawQuestion)
	assert.Equal(t, "SELECT count(*) FROM singer", first.RawQuery)
	assert.Equal(t, "how many singers do we have", first.QuestionText())

	assert.Equal(t, "pets_1", examples[2].DBID)
	assert.Contains(t, logs.String(), "skipping invalid record")
}

func TestLoader_NoExcludeFilter(t *testing.T) {
	l, err := NewLoader(Config{SpiderDir: "testdata/spider", Split: SplitDev})
	require.NoError(t, err)

	_, stats, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Loaded)
	assert.Zero(t, stats.Excluded)
}

func TestLoader_Config(t *testing.T) {
	_, err := NewLoader(Config{})
	assert.ErrorContains(t, err, "spider directory is required")

	_, err = NewLoader(Config{SpiderDir: "x", Split: "holdout"})
	assert.ErrorContains(t, err, "unknown split")

	_, err = NewLoader(Config{SpiderDir: "x", ExcludeTokensPath: "testdata/missing.txt"})
	assert.ErrorContains(t, err, "read exclude tokens")

	l, err := NewLoader(Config{SpiderDir: "root"})
	require.NoError(t, err)
	assert.Equal(t, SplitTrain, l.Split())
	assert.Equal(t, filepath.Join("root", "train_spider.json"), l.ExamplesPath())
	assert.Equal(t, filepath.Join("root", "database"), l.DatabaseDir())
}

func TestLoader_MissingSplitFile(t *testing.T) {
	l, err := NewLoader(Config{SpiderDir: "testdata/spider", Split: SplitTest})
	require.NoError(t, err)

	_, _, err = l.Load(context.Background())
	assert.ErrorContains(t, err, "read examples")
}

func TestLoader_NotAnArray(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"dev.json": `{"db_id": "x"}`})
	l, err := NewLoader(Config{SpiderDir: dir, Split: SplitDev})
	require.NoError(t, err)

	_, _, err = l.Load(context.Background())
	assert.ErrorContains(t, err, "parse examples")
}

func TestLoader_InvalidRecords(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"dev.json": `[
		{"db_id": "ok", "question": "q", "query": "SELECT a FROM b"},
		{"db_id": "has space", "question": "q", "query": "SELECT a FROM b"},
		{"db_id": "ok", "question": 3, "query": "SELECT a FROM b"},
		{"db_id": "ok", "question": "q", "query": null},
		"not an object"
	]`})
	l, err := NewLoader(Config{SpiderDir: dir, Split: SplitDev})
	require.NoError(t, err)

	examples, stats, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, examples, 1)
	assert.Equal(t, 4, stats.Invalid)
}

func TestLoader_Canceled(t *testing.T) {
	l, err := NewLoader(Config{SpiderDir: "testdata/spider", Split: SplitDev})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = l.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_Databases(t *testing.T) {
	l, err := NewLoader(Config{SpiderDir: "testdata/spider", Split: SplitDev})
	require.NoError(t, err)

	dbs, err := l.Databases()
	require.NoError(t, err)
	assert.Equal(t, []string{"concert_singer", "pets_1"}, dbs)
}

func TestSchemaCache_Get(t *testing.T) {
	cache := NewSchemaCache("testdata/spider/database", testutil.NewTestLogger(t))
	ctx := context.Background()

	s, found, err := cache.Get(ctx, "concert_singer")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"stadium", "singer", "concert", "singer_in_concert"}, s.Tables())

	again, _, _ := cache.Get(ctx, "concert_singer")
	assert.Same(t, s, again, "schemas are loaded once")

	s, found, err = cache.Get(ctx, "pets_1")
	require.NoError(t, err)
	assert.False(t, found, "a schema with no tables counts as missing")
	assert.Nil(t, s)

	s, found, err = cache.Get(ctx, "no_such_db")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, s)

	assert.Equal(t, 3, cache.Len())
}

func TestSchemaCache_SQLiteFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farm", "farm.sqlite")
	testutil.WriteFile(t, dir, "farm/.keep", "")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE city (City_ID int, Official_Name text)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, found, err := NewSchemaCache(dir, nil).Get(context.Background(), "farm")
	require.NoError(t, err)
	require.True(t, found)
	cols, _ := s.Columns("city")
	assert.Equal(t, []string{"city_id", "official_name"}, cols)
}

func TestSchemaCache_Malformed(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"broken/schema.sql": "CREATE TABLE t (a INT;",
	})

	_, found, err := NewSchemaCache(dir, nil).Get(context.Background(), "broken")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestSchemaCache_Concurrent(t *testing.T) {
	cache := NewSchemaCache("testdata/spider/database", nil)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := cache.Get(context.Background(), "concert_singer")
			results[i] = found && err == nil
		}()
	}
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	assert.Equal(t, 1, cache.Len())
}
