package ttml

import (
	"fmt"
	"strings"

	"github.com/lyricore/lyricore/core/ir"
)

// spanRole classifies an open span element.
type spanRole int

const (
	roleGeneric spanRole = iota
	roleTranslation
	roleRomanization
	roleBackground
)

// spanContext is one entry of the span stack: the role of an open span
// plus its own optional timing, language, and scheme.
type spanContext struct {
	role    spanRole
	lang    string
	scheme  string
	startMS *uint64
	endMS   *uint64

	// auxSyls collects timed child syllables of a translation or
	// romanization wrapper span.
	auxSyls []ir.Syllable
}

// timed reports whether the span carries both begin and end.
func (c *spanContext) timed() bool {
	return c.startMS != nil && c.endMS != nil
}

// pendingKind tags entries of a paragraph's pending item list.
type pendingKind int

const (
	pendingSyllable pendingKind = iota
	pendingFreeText
	// pendingSpaceMarker is a whitespace-only timed span: it produces no
	// syllable but marks a word boundary on the target content type's
	// last syllable.
	pendingSpaceMarker
)

// pendingItem is one unit of paragraph content awaiting finalize.
type pendingItem struct {
	kind        pendingKind
	text        string // raw, unnormalized
	startMS     uint64
	endMS       uint64
	contentType ir.ContentType
}

// isWhitespaceOnly reports whether a free-text item holds only whitespace.
func (it *pendingItem) isWhitespaceOnly() bool {
	return strings.TrimSpace(it.text) == ""
}

// openParagraph accumulates one <p> element (or one metadata <text> entry
// parsed as a miniature paragraph) until it closes.
type openParagraph struct {
	startMS  uint64
	endMS    uint64
	agent    string
	songPart string
	key      string

	// pending holds syllables and free text in encounter order; finalize
	// consumes it.
	pending []pendingItem

	// tracks accumulates annotated tracks: the background track is
	// pre-created when its container opens, auxiliary spans attach here
	// as they close.
	tracks []ir.AnnotatedTrack
}

// trackOf returns the accumulated annotated track for a content type,
// creating it if absent.
func (p *openParagraph) trackOf(ct ir.ContentType) *ir.AnnotatedTrack {
	for i := range p.tracks {
		if p.tracks[i].ContentType == ct {
			return &p.tracks[i]
		}
	}
	p.tracks = append(p.tracks, ir.AnnotatedTrack{ContentType: ct})
	return &p.tracks[len(p.tracks)-1]
}

// hasTrack reports whether a content type is already accumulated.
func (p *openParagraph) hasTrack(ct ir.ContentType) bool {
	for i := range p.tracks {
		if p.tracks[i].ContentType == ct {
			return true
		}
	}
	return false
}

// hasPendingSyllable reports whether any pending syllable targets ct.
func (p *openParagraph) hasPendingSyllable(ct ir.ContentType) bool {
	for i := range p.pending {
		if p.pending[i].kind == pendingSyllable && p.pending[i].contentType == ct {
			return true
		}
	}
	return false
}

// auxKind distinguishes the two auxiliary track kinds.
type auxKind int

const (
	auxTranslation auxKind = iota
	auxRomanization
)

func (k auxKind) String() string {
	if k == auxRomanization {
		return "romanization"
	}
	return "translation"
}

// metadataContext is the state of the metadata sub-parser.
type metadataContext int

const (
	metaNone metadataContext = iota
	metaInAgent
	metaInAgentName
	metaInITunesMetadata
	metaInSongwriter
	metaInAuxContainer
	metaInAuxEntry
	metaInAuxText
	metaInMeta
)

// lineAuxEntry is a line-level (untimed) auxiliary declaration from the
// metadata section, pending cross-reference resolution by line key.
type lineAuxEntry struct {
	kind     auxKind
	lang     string
	mainText string
	bgText   string
}

// detailedAuxTracks are word-timed auxiliary tracks from the metadata
// section, split by the content type they annotate.
type detailedAuxTracks struct {
	main       auxTrackSet
	background auxTrackSet
}

type auxTrackSet struct {
	translations  []ir.Track
	romanizations []ir.Track
}

func (s *auxTrackSet) add(kind auxKind, tr ir.Track) {
	if kind == auxRomanization {
		s.romanizations = append(s.romanizations, tr)
	} else {
		s.translations = append(s.translations, tr)
	}
}

// metadataState carries everything the metadata sub-parser accumulates.
type metadataState struct {
	context metadataContext

	// agentID is the agent whose declaration is open.
	agentID string
	// auxKind and auxLang describe the open auxiliary entry.
	auxKind auxKind
	auxLang string
	// auxKey is the line key of the open <text> element.
	auxKey string
	// metaKey holds the key attribute of an open meta element whose
	// value comes from inner text; metaPrev is the context to restore
	// when it closes.
	metaKey          string
	metaValue        strings.Builder
	hasMetaValueAttr bool
	metaPrev         metadataContext

	agentName  strings.Builder
	songwriter strings.Builder

	// Miniature-paragraph state for <text> entries. mainPlain and
	// bgPlain accumulate the untimed text of each layer, which decides
	// whether the entry is line-level or word-timed.
	entry     openParagraph
	spanStack []spanContext
	textBuf   strings.Builder
	mainPlain strings.Builder
	bgPlain   strings.Builder

	// Cross-reference maps, keyed by line key.
	lineAux  map[string][]lineAuxEntry
	timedAux map[string]*detailedAuxTracks
}

func newMetadataState() *metadataState {
	return &metadataState{
		lineAux:  make(map[string][]lineAuxEntry),
		timedAux: make(map[string]*detailedAuxTracks),
	}
}

func (m *metadataState) timedAuxFor(key string) *detailedAuxTracks {
	if t, ok := m.timedAux[key]; ok {
		return t
	}
	t := &detailedAuxTracks{}
	m.timedAux[key] = t
	return t
}

// formatDetection tracks whether the input looks pretty-printed.
type formatDetection int

const (
	formatUndetermined formatDetection = iota
	formatFormatted
	formatNotFormatted
)

// parserState is the state machine of one parse call.
type parserState struct {
	opts ParseOptions

	lineTimingMode bool
	detectedLine   bool

	format             formatDetection
	whitespaceNewlines int
	nodesProcessed     int

	defaultMainLang string

	inMetadata  bool
	inBody      bool
	inDiv       bool
	divSongPart string

	// paragraph is non-nil while a <p> is open.
	paragraph *openParagraph
	spanStack []spanContext
	textBuf   strings.Builder

	// lastSyllable tracks whether the previous event closed a syllable,
	// so a following whitespace text node can become its word boundary.
	lastSyllableEnded bool
	lastSyllableBG    bool

	meta *metadataState

	agents      *ir.AgentStore
	agentByName map[string]string

	lines       []ir.Line
	rawMetadata map[string][]string
	warnings    []string
}

func newParserState(opts ParseOptions) *parserState {
	return &parserState{
		opts:            opts,
		defaultMainLang: opts.DefaultMainLanguage,
		meta:            newMetadataState(),
		agents:          ir.NewAgentStore(),
		agentByName:     make(map[string]string),
		rawMetadata:     make(map[string][]string),
	}
}

func (s *parserState) warnf(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

// resolveAgent maps a body agent attribute value to a registered agent id.
// Id-shaped values pass through, synthesizing a registration when the
// declaration is missing or has not been seen yet; values matching a
// declared display name reuse that agent; anything else allocates a fresh
// id carrying the value as its name.
func (s *parserState) resolveAgent(val string) string {
	if val == "" {
		return ""
	}
	if ir.IsAgentID(val) {
		s.agents.GetOrSynthesize(val)
		return val
	}
	if s.agents.Get(val) != nil {
		return val
	}
	if id, ok := s.agentByName[val]; ok {
		return id
	}
	a := s.agents.Allocate(val)
	s.agentByName[val] = a.ID
	return a.ID
}

// backgroundAncestor reports whether any open span on the stack is a
// background container.
func backgroundAncestor(stack []spanContext) bool {
	for i := range stack {
		if stack[i].role == roleBackground {
			return true
		}
	}
	return false
}
