package ttml

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/lyricore/lyricore/core/errors"
)

// clockValue is the parsed shape of a clock string before semantic checks.
// Covered forms: "H:MM:SS.mmm", "MM:SS.mmm", "SS.mmm", and the
// suffixed-seconds form "SS.mmms" (e.g. "7.1s").
type clockValue struct {
	First    string  `parser:"@Number"`
	Second   *string `parser:"( \":\" @Number"`
	Third    *string `parser:"  ( \":\" @Number )? )?"`
	Fraction *string `parser:"( \".\" @Number )?"`
	Suffix   bool    `parser:"@SecondsSuffix?"`
}

// clockLexer tokenizes clock strings. Anything outside these tokens,
// including sign characters and whitespace, fails the lex and therefore
// the parse.
var clockLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `\d+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Dot", Pattern: `\.`},
	{Name: "SecondsSuffix", Pattern: `s`},
})

// clockParser parses clock strings into clockValue.
var clockParser = participle.MustBuild[clockValue](
	participle.Lexer(clockLexer),
)

// ParseClock parses a clock string into absolute milliseconds.
//
// The fractional part is 1-3 digits, right-padded to milliseconds
// ("7.1" is 7100 ms). Minutes and seconds must be below 60 whenever a
// higher unit is present; a bare seconds value may exceed 59. Negative
// values and extra colon segments are rejected.
func ParseClock(s string) (uint64, error) {
	cv, err := clockParser.ParseString("", s)
	if err != nil {
		return 0, errors.NewInvalidTime(s, "unrecognized clock syntax")
	}
	return cv.toMillis(s)
}

func (cv *clockValue) toMillis(original string) (uint64, error) {
	if cv.Suffix && cv.Second != nil {
		return 0, errors.NewInvalidTime(original, "suffixed-seconds form cannot carry colon segments")
	}

	var millis uint64
	if cv.Fraction != nil {
		frac := *cv.Fraction
		if len(frac) > 3 {
			return 0, errors.NewInvalidTime(original, "fractional part exceeds 3 digits")
		}
		val, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, errors.NewInvalidTime(original, "unparseable fractional part")
		}
		for i := len(frac); i < 3; i++ {
			val *= 10
		}
		millis = val
	}

	segs := []string{cv.First}
	if cv.Second != nil {
		segs = append(segs, *cv.Second)
	}
	if cv.Third != nil {
		segs = append(segs, *cv.Third)
	}

	values := make([]uint64, len(segs))
	for i, seg := range segs {
		v, err := strconv.ParseUint(seg, 10, 64)
		if err != nil {
			return 0, errors.NewInvalidTime(original, "unparseable clock segment")
		}
		values[i] = v
	}

	// The last segment is seconds, the one before it minutes, the one
	// before that hours.
	seconds := values[len(values)-1]
	var minutes, hours uint64
	if len(values) >= 2 {
		if seconds >= 60 {
			return 0, errors.NewInvalidTime(original, "seconds must be below 60 when minutes are present")
		}
		minutes = values[len(values)-2]
		if minutes >= 60 {
			return 0, errors.NewInvalidTime(original, "minutes must be below 60")
		}
	}
	if len(values) == 3 {
		hours = values[0]
	}

	return hours*3_600_000 + minutes*60_000 + seconds*1000 + millis, nil
}

// FormatClock renders milliseconds in the shortest canonical clock form:
// "SS.mmm" below one minute, "M:SS.mmm" below one hour, "H:MM:SS.mmm"
// beyond. The fraction is always 3 digits.
func FormatClock(ms uint64) string {
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	seconds := (ms % 60_000) / 1000
	millis := ms % 1000

	switch {
	case hours > 0:
		return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, millis)
	case minutes > 0:
		return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, millis)
	default:
		return fmt.Sprintf("%d.%03d", seconds, millis)
	}
}
