package ttml

import (
	"encoding/xml"
	"strings"

	"github.com/lyricore/lyricore/core/encoding"
	"github.com/lyricore/lyricore/core/ir"
)

// handleBodyToken processes events while a paragraph is open.
func (s *parserState) handleBodyToken(tok xml.Token) {
	switch t := tok.(type) {
	case xml.StartElement:
		if t.Name.Local == "span" {
			s.processBodySpanStart(t)
		}
	case xml.CharData:
		s.handleBodyText(s.cleanEntities(string(t)))
	case xml.EndElement:
		switch t.Name.Local {
		case "span":
			s.processBodySpanEnd()
		case "p":
			s.finalizeParagraph()
		case "br":
			s.warnf("line break elements are not supported; ignoring one inside a paragraph")
		}
	}
}

func (s *parserState) processBodySpanStart(t xml.StartElement) {
	s.textBuf.Reset()

	ctx := spanContext{role: roleGeneric}
	if r, ok := attrValue(t, "ttm:role", "role"); ok {
		switch r {
		case "x-translation":
			ctx.role = roleTranslation
		case "x-roman":
			ctx.role = roleRomanization
		case "x-bg":
			ctx.role = roleBackground
		}
	}
	ctx.lang, _ = attrValue(t, "xml:lang")
	ctx.scheme, _ = attrValue(t, "xml:scheme")
	ctx.startMS = s.timeAttr(t, "begin")
	ctx.endMS = s.timeAttr(t, "end")

	// The background layer exists as soon as its container opens, even if
	// it ends up holding only auxiliary tracks.
	if ctx.role == roleBackground && !s.paragraph.hasTrack(ir.ContentBackground) {
		s.paragraph.trackOf(ir.ContentBackground)
	}

	s.spanStack = append(s.spanStack, ctx)
}

// handleBodyText routes one decoded text node. Whitespace directly after a
// closed syllable is that syllable's word boundary; text inside an open
// span buffers for its end tag; bare non-blank text at paragraph level
// feeds the line-timed fallback.
func (s *parserState) handleBodyText(text string) {
	if text == "" {
		return
	}
	if s.lastSyllableEnded && strings.TrimSpace(text) == "" {
		ct := ir.ContentMain
		if s.lastSyllableBG {
			ct = ir.ContentBackground
		}
		s.paragraph.pending = append(s.paragraph.pending,
			pendingItem{kind: pendingFreeText, text: text, contentType: ct})
		s.lastSyllableEnded = false
		return
	}
	s.lastSyllableEnded = false

	if len(s.spanStack) > 0 {
		s.textBuf.WriteString(text)
		return
	}
	if strings.TrimSpace(text) != "" {
		s.paragraph.pending = append(s.paragraph.pending,
			pendingItem{kind: pendingFreeText, text: text, contentType: ir.ContentMain})
	}
}

func (s *parserState) processBodySpanEnd() {
	if len(s.spanStack) == 0 {
		return
	}
	ctx := s.spanStack[len(s.spanStack)-1]
	s.spanStack = s.spanStack[:len(s.spanStack)-1]
	raw := s.textBuf.String()
	s.textBuf.Reset()

	// A timed plain span nested in a translation or romanization wrapper
	// is one syllable of that auxiliary track, not main content.
	if ctx.role == roleGeneric && ctx.timed() && len(s.spanStack) > 0 {
		top := &s.spanStack[len(s.spanStack)-1]
		if top.role == roleTranslation || top.role == roleRomanization {
			if text := encoding.NormalizeWhitespace(raw); text != "" {
				start, end := *ctx.startMS, *ctx.endMS
				if start > end {
					s.warnf("syllable %q begins at %dms but ends at %dms; clamping the end", text, start, end)
					end = start
				}
				top.auxSyls = append(top.auxSyls, ir.Syllable{
					Text:          text,
					StartMS:       start,
					EndMS:         end,
					EndsWithSpace: strings.TrimRight(raw, " \t\n\r") != raw,
				})
			}
			return
		}
	}

	switch ctx.role {
	case roleTranslation, roleRomanization:
		s.endAuxSpan(&ctx, raw)
	case roleBackground:
		s.endBackgroundSpan(&ctx, raw)
	default:
		s.endGenericSpan(&ctx, raw)
	}
}

// endGenericSpan turns a plain span into a pending syllable, a word
// boundary, or (in a line-timed document) free text.
func (s *parserState) endGenericSpan(ctx *spanContext, raw string) {
	ct := ir.ContentMain
	if backgroundAncestor(s.spanStack) {
		ct = ir.ContentBackground
	}

	if !ctx.timed() {
		if strings.TrimSpace(raw) == "" {
			return
		}
		if s.lineTimingMode {
			s.paragraph.pending = append(s.paragraph.pending,
				pendingItem{kind: pendingFreeText, text: raw, contentType: ct})
		} else {
			s.warnf("dropping untimed span text %q in a word-timed document", strings.TrimSpace(raw))
		}
		return
	}

	if raw == "" {
		return
	}
	if strings.TrimSpace(raw) == "" {
		s.paragraph.pending = append(s.paragraph.pending,
			pendingItem{kind: pendingSpaceMarker, contentType: ct})
		return
	}

	start, end := *ctx.startMS, *ctx.endMS
	if start > end {
		s.warnf("syllable %q begins at %dms but ends at %dms; clamping the end", strings.TrimSpace(raw), start, end)
		end = start
	}
	s.paragraph.pending = append(s.paragraph.pending, pendingItem{
		kind:        pendingSyllable,
		text:        raw,
		startMS:     start,
		endMS:       end,
		contentType: ct,
	})
	s.lastSyllableEnded = true
	s.lastSyllableBG = ct == ir.ContentBackground
}

// endAuxSpan attaches an inline translation or romanization span to the
// enclosing layer's annotated track.
func (s *parserState) endAuxSpan(ctx *spanContext, raw string) {
	var tr ir.Track
	if len(ctx.auxSyls) > 0 {
		tr = ir.Track{Words: []ir.Word{{Syllables: ctx.auxSyls}}}
	} else {
		text := encoding.NormalizeWhitespace(raw)
		if text == "" {
			return
		}
		var start, end uint64
		if ctx.timed() {
			start, end = *ctx.startMS, *ctx.endMS
		}
		tr = ir.NewTextTrack(text, start, end)
	}
	ct := ir.ContentMain
	if backgroundAncestor(s.spanStack) {
		ct = ir.ContentBackground
	}

	at := s.paragraph.trackOf(ct)
	if ctx.role == roleRomanization {
		lang := ctx.lang
		if lang == "" {
			lang = s.opts.DefaultRomanizationLanguage
		}
		tr.SetMetadata(ir.TrackMetaLanguage, lang)
		tr.SetMetadata(ir.TrackMetaScheme, ctx.scheme)
		at.Romanizations = append(at.Romanizations, tr)
		return
	}
	lang := ctx.lang
	if lang == "" {
		lang = s.opts.DefaultTranslationLanguage
	}
	tr.SetMetadata(ir.TrackMetaLanguage, lang)
	at.Translations = append(at.Translations, tr)
}

// endBackgroundSpan handles text written directly inside a background
// container. It becomes the container's single syllable; once nested
// syllables exist, direct text is ambiguous and dropped.
func (s *parserState) endBackgroundSpan(ctx *spanContext, raw string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return
	}
	if !ctx.timed() {
		s.warnf("dropping untimed direct text %q in a background container", trimmed)
		return
	}
	if s.paragraph.hasPendingSyllable(ir.ContentBackground) {
		s.warnf("background container holds both nested spans and direct text; ignoring direct text %q", trimmed)
		return
	}

	start, end := *ctx.startMS, *ctx.endMS
	if start > end {
		s.warnf("background text %q begins at %dms but ends at %dms; clamping the end", trimmed, start, end)
		end = start
	}
	s.paragraph.pending = append(s.paragraph.pending, pendingItem{
		kind:        pendingSyllable,
		text:        raw,
		startMS:     start,
		endMS:       end,
		contentType: ir.ContentBackground,
	})
	s.lastSyllableEnded = true
	s.lastSyllableBG = true
}

// finalizeParagraph consumes the open paragraph and appends the resulting
// line, dropping it when nothing survived.
func (s *parserState) finalizeParagraph() {
	p := s.paragraph
	if p == nil {
		return
	}
	s.paragraph = nil
	s.spanStack = s.spanStack[:0]
	s.textBuf.Reset()
	s.lastSyllableEnded = false

	if line := s.buildLine(p); line != nil {
		s.lines = append(s.lines, *line)
	}
}

// buildLine converts accumulated paragraph state into a line. This is the
// only place pending items become syllables, so the per-paragraph result
// never depends on event-handler ordering quirks.
func (s *parserState) buildLine(p *openParagraph) *ir.Line {
	line := &ir.Line{
		StartMS:  p.startMS,
		EndMS:    p.endMS,
		Agent:    p.agent,
		SongPart: p.songPart,
		Key:      p.key,
		Tracks:   p.tracks,
	}

	for i := range p.pending {
		it := &p.pending[i]
		switch it.kind {
		case pendingSyllable:
			at := line.EnsureTrack(it.contentType)
			appendContentSyllable(&at.Content, it.text, it.startMS, it.endMS, it.contentType == ir.ContentBackground)
		case pendingSpaceMarker:
			if at := line.TrackOf(it.contentType); at != nil {
				setTrailingSpace(&at.Content)
			}
		case pendingFreeText:
			if !it.isWhitespaceOnly() {
				continue // consumed by the line-timed fallback below, or warned and dropped
			}
			if i > 0 && p.pending[i-1].kind == pendingSyllable && s.spaceSignificant(it.text) {
				if at := line.TrackOf(it.contentType); at != nil {
					setTrailingSpace(&at.Content)
				}
			}
		}
	}

	// A paragraph whose main layer produced no syllables is line-timed
	// content: its bare text becomes one syllable spanning the paragraph.
	if main := line.MainTrack(); main == nil || main.Content.IsEmpty() {
		var sb strings.Builder
		for i := range p.pending {
			if p.pending[i].kind == pendingFreeText {
				sb.WriteString(p.pending[i].text)
			}
		}
		if text := encoding.NormalizeWhitespace(sb.String()); text != "" {
			at := line.EnsureTrack(ir.ContentMain)
			at.Content = ir.NewTextTrack(text, line.StartMS, line.EndMS)
		}
	} else {
		for i := range p.pending {
			it := &p.pending[i]
			if it.kind == pendingFreeText && !it.isWhitespaceOnly() {
				s.warnf("dropping free text %q in a word-timed paragraph", strings.TrimSpace(it.text))
			}
		}
	}

	pruneEmptyTracks(line)
	if len(line.Tracks) == 0 {
		return nil
	}
	orderTracks(line)
	raiseLineEnd(line)
	return line
}

// spaceSignificant reports whether whitespace after a syllable is a real
// word boundary. In pretty-printed input, whitespace containing a newline
// is indentation.
func (s *parserState) spaceSignificant(text string) bool {
	if s.format != formatFormatted {
		return true
	}
	return !strings.ContainsAny(text, "\n\r")
}

// appendContentSyllable cleans one raw syllable text and appends it to a
// content track. Leading whitespace in the raw text marks a word boundary
// on the previous syllable; trailing whitespace marks one on this
// syllable. Background text sheds its decorative parentheses.
func appendContentSyllable(tr *ir.Track, raw string, startMS, endMS uint64, background bool) {
	if strings.TrimLeft(raw, " \t\n\r") != raw {
		setTrailingSpace(tr)
	}

	var text string
	if background {
		text = encoding.StripOuterParens(raw)
	} else {
		text = encoding.NormalizeWhitespace(raw)
	}
	if text == "" {
		return
	}

	if len(tr.Words) == 0 {
		tr.Words = append(tr.Words, ir.Word{})
	}
	w := &tr.Words[len(tr.Words)-1]
	w.Syllables = append(w.Syllables, ir.Syllable{
		Text:          text,
		StartMS:       startMS,
		EndMS:         endMS,
		EndsWithSpace: strings.TrimRight(raw, " \t\n\r") != raw,
	})
}

// setTrailingSpace marks a word boundary on the track's last syllable.
func setTrailingSpace(tr *ir.Track) {
	if n := len(tr.Words); n > 0 {
		w := &tr.Words[n-1]
		if m := len(w.Syllables); m > 0 {
			w.Syllables[m-1].EndsWithSpace = true
		}
	}
}

// pruneEmptyTracks removes annotated tracks carrying neither content
// syllables nor auxiliary tracks.
func pruneEmptyTracks(line *ir.Line) {
	kept := line.Tracks[:0]
	for i := range line.Tracks {
		at := &line.Tracks[i]
		if !at.Content.IsEmpty() || len(at.Translations) > 0 || len(at.Romanizations) > 0 {
			kept = append(kept, *at)
		}
	}
	line.Tracks = kept
}

// orderTracks puts the main layer before the background layer.
func orderTracks(line *ir.Line) {
	for i := range line.Tracks {
		if line.Tracks[i].ContentType == ir.ContentMain && i != 0 {
			line.Tracks[0], line.Tracks[i] = line.Tracks[i], line.Tracks[0]
			return
		}
	}
}

// raiseLineEnd extends the line end to cover every syllable of every
// track, including auxiliary ones.
func raiseLineEnd(line *ir.Line) {
	for i := range line.Tracks {
		at := &line.Tracks[i]
		all := []*ir.Track{&at.Content}
		for j := range at.Translations {
			all = append(all, &at.Translations[j])
		}
		for j := range at.Romanizations {
			all = append(all, &at.Romanizations[j])
		}
		for _, tr := range all {
			if _, end, ok := tr.TimeRange(); ok && end > line.EndMS {
				line.EndMS = end
			}
		}
	}
}
