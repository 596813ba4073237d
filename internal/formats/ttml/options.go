package ttml

// TimingMode selects the timing granularity of a document.
type TimingMode string

// Timing mode constants.
const (
	// TimingWord times every syllable individually.
	TimingWord TimingMode = "Word"
	// TimingLine times whole lines only.
	TimingLine TimingMode = "Line"
)

// ParseOptions configures a single parse call.
type ParseOptions struct {
	// DefaultMainLanguage is the language assumed for main content when
	// the document does not declare one.
	DefaultMainLanguage string

	// DefaultTranslationLanguage is applied to translation spans that
	// omit xml:lang.
	DefaultTranslationLanguage string

	// DefaultRomanizationLanguage is applied to romanization spans that
	// omit xml:lang.
	DefaultRomanizationLanguage string

	// ForceTimingMode overrides timing-mode detection when non-empty.
	ForceTimingMode TimingMode
}

// GenerateOptions configures a single generate call.
type GenerateOptions struct {
	// TimingMode selects word or line granularity for the output.
	TimingMode TimingMode

	// MainLanguage overrides the document language on the root element.
	MainLanguage string

	// AppleFormatRules moves auxiliary tracks into the head section the
	// way Apple's format expects. When false, translations and
	// romanizations are emitted as inline role spans instead.
	AppleFormatRules bool

	// Format pretty-prints the output with indentation. Formatted
	// output represents trailing spaces inside span text rather than as
	// whitespace between spans.
	Format bool

	// AutoWordSplitting splits multi-character syllables into
	// per-character-class tokens with proportional timing.
	AutoWordSplitting bool

	// PunctuationWeight is the time weight of punctuation tokens when
	// splitting. Zero disables punctuation timing entirely.
	PunctuationWeight float64
}

// DefaultGenerateOptions returns the options used when callers pass nil.
func DefaultGenerateOptions() *GenerateOptions {
	return &GenerateOptions{
		TimingMode:        TimingWord,
		AppleFormatRules:  true,
		PunctuationWeight: 0.3,
	}
}
