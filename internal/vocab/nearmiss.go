// Package vocab detects near-miss uses of suggested vocabulary in practice
// transcripts.
//
// Speech recognition regularly garbles the exact words a learner was asked to
// practise ("meticulus" for "meticulous", "consequentially" for
// "consequently"). The analyzer's exact matching misses those attempts, so
// this package runs a phonetic pass over the transcript: Double Metaphone
// codes filter candidates, Jaro-Winkler similarity ranks them, and anything
// above the threshold is reported as an attempted use of the suggested word.
package vocab

import (
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const defaultThreshold = 0.82

// NearMiss records one transcript word that phonetically resembles a
// suggested vocabulary item without matching it exactly.
type NearMiss struct {
	// Spoken is the word as it appears in the transcript.
	Spoken string

	// Suggested is the vocabulary item the learner likely attempted.
	Suggested string

	// Confidence is the Jaro-Winkler similarity between the two.
	Confidence float64
}

// Matcher finds near-miss vocabulary uses. Read-only after construction and
// safe for concurrent use.
type Matcher struct {
	threshold float64
}

// Option is a functional option for configuring a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum Jaro-Winkler score for a phonetic candidate
// to be reported. Default: 0.82.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) { m.threshold = threshold }
}

// New returns a Matcher configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{threshold: defaultThreshold}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Find scans the transcript for near-miss uses of the suggested words. Exact
// uses (case-insensitive) are excluded — those are the analyzer's matches,
// not near-misses. Each suggested word is reported at most once, paired with
// its best-scoring transcript word; results are sorted by descending
// confidence.
func (m *Matcher) Find(transcript string, suggested []string) []NearMiss {
	if transcript == "" || len(suggested) == 0 {
		return nil
	}

	tokens := tokenize(transcript)
	if len(tokens) == 0 {
		return nil
	}

	spokenExact := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		spokenExact[t] = struct{}{}
	}

	var out []NearMiss
	for _, word := range suggested {
		target := strings.ToLower(strings.TrimSpace(word))
		if target == "" {
			continue
		}
		if _, used := spokenExact[target]; used {
			continue
		}

		targetPrimary, targetSecondary := matchr.DoubleMetaphone(target)

		best := NearMiss{Suggested: word}
		for _, t := range tokens {
			if !codesMatch(t, targetPrimary, targetSecondary) {
				continue
			}
			if s := matchr.JaroWinkler(t, target, false); s > best.Confidence {
				best.Spoken = t
				best.Confidence = s
			}
		}
		if best.Confidence >= m.threshold {
			out = append(out, best)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// codesMatch reports whether the token shares a Double Metaphone code with
// the target word.
func codesMatch(token, targetPrimary, targetSecondary string) bool {
	p, s := matchr.DoubleMetaphone(token)
	if p != "" && (p == targetPrimary || p == targetSecondary) {
		return true
	}
	return s != "" && (s == targetPrimary || s == targetSecondary)
}

// tokenize lowercases the transcript and splits it into words, dropping
// punctuation.
func tokenize(transcript string) []string {
	return strings.FieldsFunc(strings.ToLower(transcript), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
