package ir

// types.go - Consolidated canonical lyric model type definitions.
// All format handlers should import these types from core/ir rather than
// defining their own.

import "strings"

// ContentType distinguishes the vocal layer a track belongs to.
type ContentType string

// Content type constants.
const (
	ContentMain       ContentType = "main"
	ContentBackground ContentType = "background"
)

// validContentTypes is the set of valid content types.
var validContentTypes = map[ContentType]bool{
	ContentMain:       true,
	ContentBackground: true,
}

// IsValid returns true if the content type is valid.
func (c ContentType) IsValid() bool {
	return validContentTypes[c]
}

// TrackMetadataKey identifies an entry in a track's metadata map.
// Language and Scheme are well-known; any other value is a custom key
// carried through opaquely.
type TrackMetadataKey string

// Well-known track metadata keys.
const (
	TrackMetaLanguage TrackMetadataKey = "language"
	TrackMetaScheme   TrackMetadataKey = "scheme"
)

// Document is the top-level container produced by a parse and consumed by
// every generator. It exclusively owns its lines, tracks, words, and
// syllables.
type Document struct {
	// Lines is the ordered sequence of lyric lines.
	Lines []Line `json:"lines,omitempty"`

	// Agents registers every performer referenced by a line.
	Agents *AgentStore `json:"agents,omitempty"`

	// RawMetadata maps raw metadata keys to their values. Multi-valued
	// keys are legal (e.g. multiple artists).
	RawMetadata map[string][]string `json:"raw_metadata,omitempty"`

	// SourceHash is the BLAKE3 hash of the source text, hex-encoded.
	SourceHash string `json:"source_hash,omitempty"`

	// Warnings collects the human-readable, non-fatal problems reported
	// while parsing.
	Warnings []string `json:"warnings,omitempty"`
}

// AddRawMetadata appends a value under a raw metadata key.
func (d *Document) AddRawMetadata(key, value string) {
	if d.RawMetadata == nil {
		d.RawMetadata = make(map[string][]string)
	}
	d.RawMetadata[key] = append(d.RawMetadata[key], value)
}

// Warn appends a warning to the document.
func (d *Document) Warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

// Line is one timed lyric line.
type Line struct {
	// StartMS and EndMS are absolute milliseconds. Start <= End by
	// convention, not enforced.
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`

	// Agent is the id of the performer in the document's AgentStore.
	Agent string `json:"agent,omitempty"`

	// SongPart is an optional section label (verse, chorus, ...).
	SongPart string `json:"song_part,omitempty"`

	// Key is the stable external key used to bind metadata-declared
	// auxiliary content to this line.
	Key string `json:"key,omitempty"`

	// Tracks holds at most one AnnotatedTrack per content type.
	Tracks []AnnotatedTrack `json:"tracks,omitempty"`
}

// TrackOf returns the line's annotated track for the given content type,
// or nil if the line has none.
func (l *Line) TrackOf(ct ContentType) *AnnotatedTrack {
	for i := range l.Tracks {
		if l.Tracks[i].ContentType == ct {
			return &l.Tracks[i]
		}
	}
	return nil
}

// MainTrack returns the line's Main annotated track, or nil.
func (l *Line) MainTrack() *AnnotatedTrack {
	return l.TrackOf(ContentMain)
}

// BackgroundTrack returns the line's Background annotated track, or nil.
func (l *Line) BackgroundTrack() *AnnotatedTrack {
	return l.TrackOf(ContentBackground)
}

// EnsureTrack returns the line's annotated track for the given content type,
// creating an empty one if absent. At most one track per content type ever
// exists; duplicates are merged by the caller via Merge.
func (l *Line) EnsureTrack(ct ContentType) *AnnotatedTrack {
	if at := l.TrackOf(ct); at != nil {
		return at
	}
	l.Tracks = append(l.Tracks, AnnotatedTrack{ContentType: ct})
	return &l.Tracks[len(l.Tracks)-1]
}

// IsEmpty reports whether every track on the line is empty. Empty lines are
// dropped, never emitted.
func (l *Line) IsEmpty() bool {
	for i := range l.Tracks {
		if !l.Tracks[i].Content.IsEmpty() {
			return false
		}
	}
	return true
}

// AnnotatedTrack couples one content track with its auxiliary translation
// and romanization tracks.
type AnnotatedTrack struct {
	// ContentType tags the vocal layer (Main or Background).
	ContentType ContentType `json:"content_type"`

	// Content is the sung text itself.
	Content Track `json:"content"`

	// Translations holds line-level or word-timed translation tracks.
	Translations []Track `json:"translations,omitempty"`

	// Romanizations holds line-level or word-timed romanization tracks.
	Romanizations []Track `json:"romanizations,omitempty"`
}

// Merge folds another annotated track of the same content type into this
// one: content words are appended, auxiliary tracks are appended with
// identical-text duplicates per language skipped.
func (at *AnnotatedTrack) Merge(other *AnnotatedTrack) {
	at.Content.Words = append(at.Content.Words, other.Content.Words...)
	for i := range other.Translations {
		at.AddTranslation(other.Translations[i])
	}
	for i := range other.Romanizations {
		at.AddRomanization(other.Romanizations[i])
	}
}

// AddTranslation appends a translation track unless an identical-text
// translation for the same language is already present.
func (at *AnnotatedTrack) AddTranslation(tr Track) {
	if hasEquivalent(at.Translations, tr) {
		return
	}
	at.Translations = append(at.Translations, tr)
}

// AddRomanization appends a romanization track unless an identical-text
// romanization for the same language is already present.
func (at *AnnotatedTrack) AddRomanization(tr Track) {
	if hasEquivalent(at.Romanizations, tr) {
		return
	}
	at.Romanizations = append(at.Romanizations, tr)
}

func hasEquivalent(tracks []Track, tr Track) bool {
	lang := tr.Metadata[TrackMetaLanguage]
	text := tr.DisplayText()
	for i := range tracks {
		if tracks[i].Metadata[TrackMetaLanguage] == lang && tracks[i].DisplayText() == text {
			return true
		}
	}
	return false
}

// Track is an ordered sequence of words plus a small metadata map.
type Track struct {
	// Words is the ordered word sequence.
	Words []Word `json:"words,omitempty"`

	// Metadata holds language, scheme, and custom track annotations.
	Metadata map[TrackMetadataKey]string `json:"metadata,omitempty"`
}

// NewTextTrack builds a single-syllable track spanning [startMS, endMS],
// the representation of line-timed content.
func NewTextTrack(text string, startMS, endMS uint64) Track {
	return Track{Words: []Word{{Syllables: []Syllable{{
		Text:    text,
		StartMS: startMS,
		EndMS:   endMS,
	}}}}}
}

// SetMetadata records a metadata value on the track, allocating the map on
// first use. Empty values are ignored.
func (t *Track) SetMetadata(key TrackMetadataKey, value string) {
	if value == "" {
		return
	}
	if t.Metadata == nil {
		t.Metadata = make(map[TrackMetadataKey]string)
	}
	t.Metadata[key] = value
}

// Language returns the track's language tag, or "".
func (t *Track) Language() string {
	return t.Metadata[TrackMetaLanguage]
}

// Syllables iterates the track's syllables in order, across words.
func (t *Track) Syllables(yield func(*Syllable) bool) {
	for wi := range t.Words {
		for si := range t.Words[wi].Syllables {
			if !yield(&t.Words[wi].Syllables[si]) {
				return
			}
		}
	}
}

// SyllableCount returns the total number of syllables across all words.
func (t *Track) SyllableCount() int {
	n := 0
	for wi := range t.Words {
		n += len(t.Words[wi].Syllables)
	}
	return n
}

// IsEmpty reports whether the track has no syllable with non-empty text.
func (t *Track) IsEmpty() bool {
	empty := true
	t.Syllables(func(s *Syllable) bool {
		if s.Text != "" {
			empty = false
			return false
		}
		return true
	})
	return empty
}

// IsTimed reports whether the track carries word-level timing: more than
// one syllable and at least one with a positive duration.
func (t *Track) IsTimed() bool {
	if t.SyllableCount() <= 1 {
		return false
	}
	timed := false
	t.Syllables(func(s *Syllable) bool {
		if s.EndMS > s.StartMS {
			timed = true
			return false
		}
		return true
	})
	return timed
}

// DisplayText concatenates the track's syllables into display text,
// honoring each syllable's trailing-space flag. The result carries no
// trailing space.
func (t *Track) DisplayText() string {
	var sb strings.Builder
	t.Syllables(func(s *Syllable) bool {
		sb.WriteString(s.Text)
		if s.EndsWithSpace {
			sb.WriteByte(' ')
		}
		return true
	})
	return strings.TrimRight(sb.String(), " ")
}

// TimeRange returns the minimum start and maximum end over the track's
// syllables. ok is false for a track with no syllables.
func (t *Track) TimeRange() (startMS, endMS uint64, ok bool) {
	first := true
	t.Syllables(func(s *Syllable) bool {
		if first {
			startMS, endMS = s.StartMS, s.EndMS
			first = false
			return true
		}
		if s.StartMS < startMS {
			startMS = s.StartMS
		}
		if s.EndMS > endMS {
			endMS = s.EndMS
		}
		return true
	})
	return startMS, endMS, !first
}

// Word is an ordered sequence of syllables plus an optional parallel ruby
// annotation. Ruby is produced by one source format only and carried
// through opaquely.
type Word struct {
	Syllables []Syllable     `json:"syllables,omitempty"`
	Ruby      []RubySyllable `json:"ruby,omitempty"`
}

// Syllable is the smallest timed text unit.
type Syllable struct {
	// Text never contains a literal space; it is whitespace-normalized.
	// A space after the syllable is represented by EndsWithSpace.
	Text string `json:"text"`

	// StartMS and EndMS are absolute milliseconds.
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`

	// DurationMS is an explicit duration when the source declared one.
	DurationMS *uint64 `json:"duration_ms,omitempty"`

	// EndsWithSpace marks a word boundary after this syllable.
	EndsWithSpace bool `json:"ends_with_space,omitempty"`
}

// RubySyllable is one unit of a word's ruby/furigana annotation.
type RubySyllable struct {
	Text    string `json:"text"`
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
}
