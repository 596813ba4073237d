// Package ttml implements the parser and generator for the timed-text
// markup lyric format used by Apple Music and AMLL.
//
// Parsing is a single streaming pass over the token stream. The body
// sub-parser accumulates each paragraph's content as pending items resolved
// by a finalize step; the metadata sub-parser collects agents, key/value
// pairs, and auxiliary track declarations keyed by line key. A final
// cross-reference pass binds the metadata-declared auxiliary tracks to
// body lines, so metadata may appear before or after the body.
//
// The parser is deliberately lenient: semantic problems degrade to
// warnings and dropped content, and a structurally broken document is
// salvaged up to the point of the error whenever anything was recovered.
package ttml

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"github.com/lyricore/lyricore/core/errors"
	"github.com/lyricore/lyricore/core/ir"
)

// Result is the outcome of one parse call.
type Result struct {
	// Document is the parsed canonical document, including warnings.
	Document *ir.Document

	// LineTimed reports that the source was line-timed, either declared
	// via itunes:timing or detected from the absence of timed spans.
	LineTimed bool

	// FormattedInput reports that the source looked pretty-printed, in
	// which case newline-bearing whitespace between syllables is
	// insignificant.
	FormattedInput bool
}

// Parse parses markup content into the canonical model. Semantic problems
// never fail the parse; they are reported through Document.Warnings. A
// structural error fails only when nothing could be salvaged.
func Parse(content string, opts *ParseOptions) (*Result, error) {
	if opts == nil {
		opts = &ParseOptions{}
	}
	s := newParserState(*opts)

	// Pre-scan: a document with no timed span can only be line-timed.
	hasTimedSpans := strings.Contains(content, "<span") && strings.Contains(content, "begin=")

	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false

	for {
		s.observeNode()

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.recoverFromError(err)
			break
		}

		if cd, ok := tok.(xml.CharData); ok {
			s.observeWhitespace(cd)
		}

		switch {
		case s.inMetadata:
			s.handleMetadataToken(tok)
		case s.paragraph != nil:
			s.handleBodyToken(tok)
		default:
			s.handleGlobalToken(tok, hasTimedSpans)
		}
	}

	s.resolveCrossReferences()

	if len(s.lines) == 0 && len(s.rawMetadata) == 0 && s.agents.Len() == 0 && len(s.warnings) > 0 {
		if salvageFailed(s.warnings) {
			return nil, errors.NewParse("ttml", s.warnings[len(s.warnings)-1])
		}
	}

	doc := &ir.Document{
		Lines:       s.lines,
		Agents:      s.agents,
		RawMetadata: s.rawMetadata,
		SourceHash:  ir.HashString(content),
		Warnings:    s.warnings,
	}
	if len(doc.RawMetadata) == 0 {
		doc.RawMetadata = nil
	}

	return &Result{
		Document:       doc,
		LineTimed:      s.lineTimingMode,
		FormattedInput: s.format == formatFormatted,
	}, nil
}

// observeNode advances the pretty-print detection counters.
func (s *parserState) observeNode() {
	if s.format != formatUndetermined {
		return
	}
	s.nodesProcessed++
	if s.whitespaceNewlines > 5 {
		s.format = formatFormatted
	} else if s.nodesProcessed > 5000 {
		s.format = formatNotFormatted
	}
}

// observeWhitespace counts whitespace-only text nodes containing newlines.
func (s *parserState) observeWhitespace(cd xml.CharData) {
	if s.format != formatUndetermined {
		return
	}
	hasNewline := false
	for _, b := range cd {
		switch {
		case b == '\n':
			hasNewline = true
		case b == ' ' || b == '\t' || b == '\r':
		default:
			return
		}
	}
	if hasNewline {
		s.whitespaceNewlines++
	}
}

// recoverFromError salvages whatever the parse produced before a
// structural error. An open paragraph is finalized with the content it
// accumulated so far; everything else is abandoned.
func (s *parserState) recoverFromError(err error) {
	s.warnf("markup structure error: %v; stopping early", err)
	if s.paragraph != nil {
		s.warnf("structure error inside a paragraph starting at %dms; salvaging its parsed content", s.paragraph.startMS)
		s.finalizeParagraph()
	}
}

func salvageFailed(warnings []string) bool {
	for _, w := range warnings {
		if strings.Contains(w, "stopping early") {
			return true
		}
	}
	return false
}

// handleGlobalToken processes events outside <metadata> and outside any
// open paragraph.
func (s *parserState) handleGlobalToken(tok xml.Token, hasTimedSpans bool) {
	switch t := tok.(type) {
	case xml.StartElement:
		switch t.Name.Local {
		case "tt":
			s.processRootStart(t, hasTimedSpans)
		case "metadata":
			s.inMetadata = true
		case "body":
			s.inBody = true
		case "div":
			if s.inBody {
				s.inDiv = true
				s.divSongPart, _ = attrValue(t, "itunes:songPart", "itunes:song-part")
			}
		case "p":
			if s.inBody {
				s.openParagraph(t)
			}
		}
	case xml.EndElement:
		switch t.Name.Local {
		case "div":
			if s.inDiv {
				s.inDiv = false
				s.divSongPart = ""
			}
		case "body":
			s.inBody = false
		}
	}
}

// processRootStart determines the timing mode and document language from
// the root element.
func (s *parserState) processRootStart(t xml.StartElement, hasTimedSpans bool) {
	switch s.opts.ForceTimingMode {
	case TimingLine:
		s.lineTimingMode = true
	case TimingWord:
		s.lineTimingMode = false
	default:
		if timing, ok := attrValue(t, "itunes:timing"); ok {
			s.lineTimingMode = strings.EqualFold(timing, "line")
		} else if !hasTimedSpans {
			s.lineTimingMode = true
			s.detectedLine = true
			s.warnf("no timed span found and no timing mode declared; treating document as line-timed")
		}
	}

	if lang, ok := attrValue(t, "xml:lang"); ok && lang != "" {
		s.rawMetadata["Language"] = append(s.rawMetadata["Language"], lang)
		if s.defaultMainLang == "" {
			s.defaultMainLang = lang
		}
	}
}

// openParagraph starts accumulating one body line.
func (s *parserState) openParagraph(t xml.StartElement) {
	start := s.timeAttr(t, "begin")
	end := s.timeAttr(t, "end")

	agentAttr, _ := attrValue(t, "ttm:agent", "agent")
	songPart, ok := attrValue(t, "itunes:songPart", "itunes:song-part")
	if !ok {
		songPart = s.divSongPart
	}
	key, _ := attrValue(t, "itunes:key")

	p := &openParagraph{
		agent:    s.resolveAgent(agentAttr),
		songPart: songPart,
		key:      key,
	}
	if start != nil {
		p.startMS = *start
	}
	if end != nil {
		p.endMS = *end
	}

	s.paragraph = p
	s.spanStack = s.spanStack[:0]
	s.textBuf.Reset()
	s.lastSyllableEnded = false
}

// namespace prefixes accepted for qualified attribute names. The decoder
// resolves declared prefixes to their namespace URL; undeclared prefixes
// come through verbatim, so both spellings are matched.
var nsAliases = map[string][]string{
	"ttm":    {"ttm", "http://www.w3.org/ns/ttml#metadata"},
	"itunes": {"itunes", "http://music.apple.com/lyric-ttml-internal"},
	"amll":   {"amll", "http://www.example.com/ns/amll"},
	"xml":    {"xml", "http://www.w3.org/XML/1998/namespace"},
}

// attrValue finds the first of the named attributes on an element. Names
// may be qualified ("ttm:agent") or plain ("begin"); a plain name only
// matches an attribute with no namespace.
func attrValue(e xml.StartElement, names ...string) (string, bool) {
	for _, want := range names {
		prefix, local, qualified := strings.Cut(want, ":")
		if !qualified {
			local, prefix = want, ""
		}
		for _, a := range e.Attr {
			if a.Name.Local != local {
				continue
			}
			if prefix == "" {
				if a.Name.Space == "" {
					return a.Value, true
				}
				continue
			}
			for _, space := range nsAliases[prefix] {
				if a.Name.Space == space {
					return a.Value, true
				}
			}
		}
	}
	return "", false
}

// timeAttr parses a clock attribute, degrading a malformed value to a
// warning and a missing attribute.
func (s *parserState) timeAttr(e xml.StartElement, names ...string) *uint64 {
	v, ok := attrValue(e, names...)
	if !ok {
		return nil
	}
	ms, err := ParseClock(v)
	if err != nil {
		s.warnf("ignoring unparseable timestamp %q: %v", v, err)
		return nil
	}
	return &ms
}

// entityResidue matches named character references the decoder left
// undecoded, which happens only for references outside the predefined
// entity table.
var entityResidue = regexp.MustCompile(`&[a-zA-Z][a-zA-Z0-9]*;`)

// cleanEntities drops unknown named character references from decoded
// text, warning once per occurrence. Predefined and numeric references
// were already decoded by the tokenizer.
func (s *parserState) cleanEntities(text string) string {
	if !strings.Contains(text, "&") {
		return text
	}
	return entityResidue.ReplaceAllStringFunc(text, func(m string) string {
		s.warnf("dropping unknown character reference %q", m)
		return ""
	})
}
