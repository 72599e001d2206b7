package moderation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// leet maps common character substitutions back to the letters they stand
// for, so "D@mn" and "$hit" tokenize like the words they spell.
var leet = strings.NewReplacer(
	"@", "a", "4", "a",
	"$", "s", "5", "s",
	"0", "o",
	"1", "i", "!", "i",
	"3", "e",
	"7", "t",
)

// DecodeLeet undoes leetspeak substitutions in text.
func DecodeLeet(text string) string { return leet.Replace(text) }

// Tokenize splits free-form text into lower-case tokens with accents folded
// and punctuation treated as a separator.
func Tokenize(text string) []string {
	// transform chains keep internal state; build one per call so Tokenize is
	// safe for concurrent use.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	bare := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	folded, _, err := transform.String(fold, bare)
	if err != nil {
		log.Warn().Err(err).Msg("moderation: unicode normalization failed")
		folded = bare
	}
	return strings.Fields(folded)
}

// joinSpelled collapses runs of single-rune tokens ("f", "u", "c", "k") into
// one token so spelled-out words are matched too. Runs shorter than three
// runes are dropped.
func joinSpelled(tokens []string) []string {
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if n >= 3 {
			out = append(out, cur.String())
		}
		cur.Reset()
		n = 0
	}
	for _, t := range tokens {
		if len([]rune(t)) == 1 {
			cur.WriteString(t)
			n++
			continue
		}
		flush()
	}
	flush()
	return out
}
