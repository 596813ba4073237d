package ttml

import (
	"math"
	"unicode"
	"unicode/utf8"

	"github.com/lyricore/lyricore/core/ir"
)

// charClass groups runes for word splitting. CJK characters each stand
// alone; Latin letters and digits cluster into words; everything else is
// punctuation.
type charClass int

const (
	classCJK charClass = iota
	classLatin
	classNumeric
	classWhitespace
	classOther
)

func classOf(r rune) charClass {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF, // CJK unified ideographs
		r >= 0x3040 && r <= 0x309F, // hiragana
		r >= 0x30A0 && r <= 0x30FF, // katakana
		r >= 0xAC00 && r <= 0xD7AF: // hangul
		return classCJK
	case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		return classLatin
	case r >= '0' && r <= '9':
		return classNumeric
	case unicode.IsSpace(r):
		return classWhitespace
	default:
		return classOther
	}
}

// mergeable classes absorb a following rune of the same class into one
// token; CJK and punctuation runes always stand alone.
func mergeable(c charClass) bool {
	return c == classLatin || c == classNumeric || c == classWhitespace
}

type splitToken struct {
	text  string
	class charClass
}

// tokenize breaks text into class runs.
func tokenize(text string) []splitToken {
	var out []splitToken
	for _, r := range text {
		c := classOf(r)
		if n := len(out); n > 0 && out[n-1].class == c && mergeable(c) {
			out[n-1].text += string(r)
			continue
		}
		out = append(out, splitToken{text: string(r), class: c})
	}
	return out
}

// splitSyllables splits each syllable into per-token syllables with
// timing distributed proportionally to token weight.
func splitSyllables(syls []ir.Syllable, punctWeight float64) []ir.Syllable {
	var out []ir.Syllable
	for _, s := range syls {
		out = append(out, splitSyllable(s, punctWeight)...)
	}
	return out
}

// splitSyllable distributes a syllable's time span over its tokens.
// Letters and digits weigh one unit per rune, punctuation weighs
// punctWeight, and whitespace weighs nothing and becomes the preceding
// token's word boundary. The last visible token always ends exactly at
// the original end.
func splitSyllable(s ir.Syllable, punctWeight float64) []ir.Syllable {
	toks := tokenize(s.Text)
	if len(toks) <= 1 {
		return []ir.Syllable{s}
	}

	weights := make([]float64, len(toks))
	var total float64
	for i, t := range toks {
		switch t.class {
		case classWhitespace:
		case classOther:
			weights[i] = punctWeight
		default:
			weights[i] = float64(utf8.RuneCountInString(t.text))
		}
		total += weights[i]
	}
	if total <= 0 {
		return []ir.Syllable{s}
	}

	dur := float64(s.EndMS - s.StartMS)
	var out []ir.Syllable
	var cum float64
	cur := s.StartMS
	for i, t := range toks {
		cum += weights[i]
		end := s.StartMS + uint64(math.Round(dur*cum/total))
		if t.class == classWhitespace {
			if n := len(out); n > 0 {
				out[n-1].EndsWithSpace = true
			}
			cur = end
			continue
		}
		out = append(out, ir.Syllable{Text: t.text, StartMS: cur, EndMS: end})
		cur = end
	}
	if len(out) == 0 {
		return []ir.Syllable{s}
	}
	out[len(out)-1].EndMS = s.EndMS
	out[len(out)-1].EndsWithSpace = s.EndsWithSpace
	return out
}
