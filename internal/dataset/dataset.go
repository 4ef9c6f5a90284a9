// Package dataset loads Spider-style (database, question, gold SQL) triples
// and the schemas of their databases.
//
// Paths come from Config at construction time:
//
//	<SpiderDir>/train_spider.json     train split
//	<SpiderDir>/dev.json              dev split
//	<SpiderDir>/test.json             test split
//	<SpiderDir>/database/<db>/        train and dev databases
//	<SpiderDir>/test_database/<db>/   test databases
//
// Records whose query contains an excluded token, or that fail record
// validation, are skipped and counted rather than failing the load.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Split names a dataset partition.
type Split string

const (
	SplitTrain Split = "train"
	SplitDev   Split = "dev"
	SplitTest  Split = "test"
)

// ParseSplit parses "train", "dev" or "test".
func ParseSplit(s string) (Split, error) {
	switch Split(strings.ToLower(s)) {
	case SplitTrain:
		return SplitTrain, nil
	case SplitDev:
		return SplitDev, nil
	case SplitTest:
		return SplitTest, nil
	default:
		return "", fmt.Errorf("unknown split %q (want train, dev or test)", s)
	}
}

// File returns the examples file name of the split.
func (s Split) File() string {
	switch s {
	case SplitTrain:
		return "train_spider.json"
	case SplitDev:
		return "dev.json"
	default:
		return "test.json"
	}
}

// DatabaseDir returns the directory name holding the split's databases.
func (s Split) DatabaseDir() string {
	if s == SplitTest {
		return "test_database"
	}
	return "database"
}

// Config configures a Loader.
type Config struct {
	// SpiderDir is the root of the Spider release.
	SpiderDir string

	// Split selects the examples file and database directory.
	Split Split

	// ExcludeTokensPath names a file with one SQL token per line. Queries
	// containing any of them are skipped. Empty means no filter.
	ExcludeTokensPath string

	// Logger receives skip warnings. Nil discards them.
	Logger *slog.Logger
}

// Example is one loaded record. Question and Query are lower-cased tokens.
type Example struct {
	DBID        string   `json:"db_id"`
	Question    []string `json:"question"`
	Query       []string `json:"query"`
	RawQuestion string   `json:"raw_question"`
	RawQuery    string   `json:"raw_query"`
}

// QuestionText joins the question tokens with spaces.
func (e Example) QuestionText() string {
	return strings.Join(e.Question, " ")
}

// Stats counts what happened during a load.
type Stats struct {
	Loaded    int `json:"loaded"`
	Excluded  int `json:"excluded"`
	Invalid   int `json:"invalid"`
	Databases int `json:"databases"`
}

var (
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	sqlPattern  = regexp.MustCompile(`[\p{L}\p{N}_]+|[(),;=*<>]`)
)

// TokenizeQuestion splits a question into lower-cased word tokens.
func TokenizeQuestion(s string) []string {
	return lowerAll(wordPattern.FindAllString(s, -1))
}

// TokenizeQuery splits SQL into lower-cased word tokens and the punctuation
// ( ) , ; = * < >. Quotes, dots and other operators are dropped.
func TokenizeQuery(s string) []string {
	return lowerAll(sqlPattern.FindAllString(s, -1))
}

func lowerAll(tokens []string) []string {
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}

// LoadExcludeTokens reads one token per line. Blank lines are ignored.
func LoadExcludeTokens(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exclude tokens: %w", err)
	}
	tokens := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		if tok := strings.TrimSpace(line); tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens, nil
}

// Loader reads examples for one split.
type Loader struct {
	cfg       Config
	exclude   map[string]struct{}
	validator *recordValidator
	logger    *slog.Logger
}

// NewLoader validates cfg and reads the exclude token file.
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.SpiderDir == "" {
		return nil, fmt.Errorf("spider directory is required")
	}
	if cfg.Split == "" {
		cfg.Split = SplitTrain
	}
	if _, err := ParseSplit(string(cfg.Split)); err != nil {
		return nil, err
	}

	l := &Loader{cfg: cfg, logger: cfg.Logger}
	if l.logger == nil {
		l.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ExcludeTokensPath != "" {
		tokens, err := LoadExcludeTokens(cfg.ExcludeTokensPath)
		if err != nil {
			return nil, err
		}
		l.exclude = tokens
	}

	v, err := newRecordValidator()
	if err != nil {
		return nil, err
	}
	l.validator = v
	return l, nil
}

// Split returns the configured split.
func (l *Loader) Split() Split {
	return l.cfg.Split
}

// ExamplesPath is the examples file of the configured split.
func (l *Loader) ExamplesPath() string {
	return filepath.Join(l.cfg.SpiderDir, l.cfg.Split.File())
}

// DatabaseDir is the database directory of the configured split.
func (l *Loader) DatabaseDir() string {
	return filepath.Join(l.cfg.SpiderDir, l.cfg.Split.DatabaseDir())
}

// Databases lists the database names under DatabaseDir, sorted.
func (l *Loader) Databases() ([]string, error) {
	entries, err := os.ReadDir(l.DatabaseDir())
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads the configured split.
func (l *Loader) Load(ctx context.Context) ([]Example, Stats, error) {
	return l.LoadFile(ctx, l.ExamplesPath())
}

// LoadFile reads a JSON array of records with db_id, question and query.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]Example, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read examples: %w", err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, Stats{}, fmt.Errorf("parse examples %s: %w", path, err)
	}

	var (
		stats    Stats
		examples []Example
		dbs      = make(map[string]struct{})
	)
	for i, raw := range raws {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, Stats{}, err
			}
		}

		rec, err := l.validator.validate(raw)
		if err != nil {
			stats.Invalid++
			l.logger.Warn("skipping invalid record", "file", path, "index", i, "error", err)
			continue
		}

		ex := Example{
			DBID:        rec.DBID,
			Question:    TokenizeQuestion(rec.Question),
			Query:       TokenizeQuery(rec.Query),
			RawQuestion: rec.Question,
			RawQuery:    rec.Query,
		}
		if tok, ok := l.excluded(ex.Query); ok {
			stats.Excluded++
			l.logger.Debug("skipping record with excluded token", "index", i, "token", tok)
			continue
		}

		examples = append(examples, ex)
		dbs[ex.DBID] = struct{}{}
	}

	stats.Loaded = len(examples)
	stats.Databases = len(dbs)
	l.logger.Info("loaded examples",
		"file", path,
		"loaded", stats.Loaded,
		"excluded", stats.Excluded,
		"invalid", stats.Invalid,
		"databases", stats.Databases)
	return examples, stats, nil
}

func (l *Loader) excluded(query []string) (string, bool) {
	for _, tok := range query {
		if _, ok := l.exclude[tok]; ok {
			return tok, true
		}
	}
	return "", false
}
