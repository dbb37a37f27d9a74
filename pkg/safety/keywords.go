package safety

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// builtinKeywords are always blocked, in addition to any configured terms.
var builtinKeywords = []string{
	"aryan", "auschwitz",
	"black people",
	"child porn", "concentration camp",
	"faggot",
	"hitler", "holocaust",
	"incest", "israel",
	"jewish", "jew", "jews",
	"kill", "kkk",
	"loli",
	"master race", "muslim",
	"nationalist", "nazi", "nigga", "nigger",
	"paedo", "palestin", "pedo",
	"racist", "rape", "raping",
	"slut", "swastika",
}

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Tokenize folds accents, lower-cases text and splits on anything that is
// not a letter or digit. Accents are folded first so combining marks never
// act as separators.
func Tokenize(text string) []string {
	// the transformer is stateful, so build one per call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(normFunc, text)
	if err != nil {
		folded = text
	}
	return strings.Fields(strings.ToLower(nonTokenChars.ReplaceAllString(folded, " ")))
}

// KeywordSet matches whole-token keywords. Multi-word keywords match as
// consecutive tokens. A KeywordSet is immutable and safe for concurrent use.
type KeywordSet struct {
	// keyed by first token
	seqs map[string][][]string
}

// NewKeywordSet builds a set from the built-in list plus extra terms.
func NewKeywordSet(extra []string) *KeywordSet {
	ks := &KeywordSet{seqs: make(map[string][][]string)}
	seen := make(map[string]bool)
	for _, kw := range append(append([]string{}, builtinKeywords...), extra...) {
		toks := Tokenize(kw)
		if len(toks) == 0 {
			continue
		}
		key := strings.Join(toks, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		ks.seqs[toks[0]] = append(ks.seqs[toks[0]], toks)
	}
	return ks
}

// Match returns every keyword found in text, in order of first appearance.
func (ks *KeywordSet) Match(text string) []string {
	toks := Tokenize(text)
	var found []string
	hit := make(map[string]bool)
	for i, tok := range toks {
		for _, seq := range ks.seqs[tok] {
			if i+len(seq) > len(toks) || !equalTokens(toks[i:i+len(seq)], seq) {
				continue
			}
			kw := strings.Join(seq, " ")
			if !hit[kw] {
				hit[kw] = true
				found = append(found, kw)
			}
		}
	}
	return found
}

// Len returns the number of distinct keywords.
func (ks *KeywordSet) Len() int {
	n := 0
	for _, s := range ks.seqs {
		n += len(s)
	}
	return n
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
