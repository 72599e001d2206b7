// Package moderation classifies user text as allowed or blocked against a
// censor-word list. Blocked text is still stored by callers, only flagged.
package moderation

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed wordlist.txt
var defaultWordlist string

// Classifier decides whether text must be flagged as blocked.
// Implementations must be deterministic and safe for concurrent use.
type Classifier interface {
	Classify(text string) bool
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(text string) bool

// Classify calls f.
func (f ClassifierFunc) Classify(text string) bool { return f(text) }

// Gate is a wordlist Classifier. The list is loaded once, on first use or on
// an explicit Load, and never mutated afterwards.
type Gate struct {
	path   string
	logger zerolog.Logger

	once    sync.Once
	loadErr error
	words   map[string]struct{}
	phrases [][]string
}

// Option customizes a Gate.
type Option func(*Gate)

// WithWordlistFile reads the censor list from path instead of the embedded one.
func WithWordlistFile(path string) Option {
	return func(g *Gate) { g.path = strings.TrimSpace(path) }
}

// WithLogger sets the logger used for load failures.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// NewGate returns a Gate. Nothing is read until Load or Classify.
func NewGate(opts ...Option) *Gate {
	g := &Gate{logger: log.With().Str("component", "moderation").Logger()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Load reads the wordlist now. A configured file that cannot be read is
// reported and the embedded list is used instead.
func (g *Gate) Load() error {
	g.once.Do(g.load)
	return g.loadErr
}

// Size returns the number of loaded entries (words plus phrases).
func (g *Gate) Size() int {
	g.once.Do(g.load)
	return len(g.words) + len(g.phrases)
}

// Classify reports whether text contains a listed word or phrase.
func (g *Gate) Classify(text string) bool {
	g.once.Do(g.load)

	if g.matches(Tokenize(text)) {
		return true
	}
	if decoded := DecodeLeet(text); decoded != text {
		return g.matches(Tokenize(decoded))
	}
	return false
}

func (g *Gate) matches(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if _, ok := g.words[t]; ok {
			return true
		}
	}
	for _, t := range joinSpelled(tokens) {
		if _, ok := g.words[t]; ok {
			return true
		}
	}
	for _, p := range g.phrases {
		if containsSeq(tokens, p) {
			return true
		}
	}
	return false
}

func (g *Gate) load() {
	src := io.Reader(strings.NewReader(defaultWordlist))
	if g.path != "" {
		f, err := os.Open(g.path)
		if err != nil {
			g.loadErr = fmt.Errorf("moderation: open wordlist: %w", err)
			g.logger.Error().Err(err).Str("path", g.path).Msg("wordlist unreadable, using embedded list")
		} else {
			defer f.Close()
			src = f
		}
	}

	words, phrases, err := parseWordlist(src)
	if err != nil {
		g.loadErr = fmt.Errorf("moderation: read wordlist: %w", err)
		g.logger.Error().Err(err).Msg("wordlist read failed, using embedded list")
		words, phrases, _ = parseWordlist(strings.NewReader(defaultWordlist))
	}
	g.words, g.phrases = words, phrases
	g.logger.Debug().Int("words", len(words)).Int("phrases", len(phrases)).Msg("wordlist loaded")
}

// parseWordlist reads one entry per line; blank lines and '#' comments are
// skipped. Entries are tokenized like the text they are matched against.
func parseWordlist(r io.Reader) (map[string]struct{}, [][]string, error) {
	words := make(map[string]struct{})
	var phrases [][]string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch toks := Tokenize(line); len(toks) {
		case 0:
		case 1:
			words[toks[0]] = struct{}{}
		default:
			phrases = append(phrases, toks)
		}
	}
	return words, phrases, sc.Err()
}

func containsSeq(tokens, seq []string) bool {
	if len(seq) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(tokens); i++ {
		for j := range seq {
			if tokens[i+j] != seq[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
