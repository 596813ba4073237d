package ttml

import (
	"encoding/xml"
	"strings"

	"github.com/lyricore/lyricore/core/encoding"
	"github.com/lyricore/lyricore/core/ir"
)

// handleMetadataToken processes events inside <metadata>. The section is
// a small context machine: agent declarations, key/value meta entries,
// and the iTunesMetadata block with its songwriter list and auxiliary
// track declarations keyed by line.
func (s *parserState) handleMetadataToken(tok xml.Token) {
	switch t := tok.(type) {
	case xml.StartElement:
		s.metadataStart(t)
	case xml.CharData:
		s.metadataText(s.cleanEntities(string(t)))
	case xml.EndElement:
		s.metadataEnd(t)
	}
}

func (s *parserState) metadataStart(t xml.StartElement) {
	m := s.meta
	switch t.Name.Local {
	case "agent":
		id, _ := attrValue(t, "xml:id")
		if id == "" {
			s.warnf("agent declaration without xml:id; ignoring it")
			return
		}
		typ, _ := attrValue(t, "type")
		s.agents.Register(&ir.Agent{ID: id, Type: agentTypeFrom(typ)})
		m.context = metaInAgent
		m.agentID = id

	case "name":
		if m.context == metaInAgent {
			m.context = metaInAgentName
			m.agentName.Reset()
		}

	case "meta":
		key, _ := attrValue(t, "key")
		if key == "" {
			return
		}
		if v, ok := attrValue(t, "value"); ok {
			s.rawMetadata[key] = append(s.rawMetadata[key], v)
			m.hasMetaValueAttr = true
		} else {
			m.hasMetaValueAttr = false
		}
		m.metaPrev = m.context
		m.context = metaInMeta
		m.metaKey = key
		m.metaValue.Reset()

	case "iTunesMetadata":
		m.context = metaInITunesMetadata

	case "songwriter":
		if m.context == metaInITunesMetadata {
			m.context = metaInSongwriter
			m.songwriter.Reset()
		}

	case "translations":
		if m.context == metaInITunesMetadata {
			m.context = metaInAuxContainer
			m.auxKind = auxTranslation
		}

	case "transliterations":
		if m.context == metaInITunesMetadata {
			m.context = metaInAuxContainer
			m.auxKind = auxRomanization
		}

	case "translation":
		if m.context == metaInAuxContainer && m.auxKind == auxTranslation {
			m.context = metaInAuxEntry
			m.auxLang, _ = attrValue(t, "xml:lang")
		}

	case "transliteration":
		if m.context == metaInAuxContainer && m.auxKind == auxRomanization {
			m.context = metaInAuxEntry
			m.auxLang, _ = attrValue(t, "xml:lang")
		}

	case "text":
		if m.context == metaInAuxEntry {
			m.context = metaInAuxText
			m.auxKey, _ = attrValue(t, "for")
			m.entry = openParagraph{}
			m.spanStack = m.spanStack[:0]
			m.textBuf.Reset()
			m.mainPlain.Reset()
			m.bgPlain.Reset()
		}

	case "span":
		if m.context == metaInAuxText {
			// Text buffered under the parent span belongs before this one.
			if m.textBuf.Len() > 0 {
				m.entry.pending = append(m.entry.pending,
					pendingItem{kind: pendingFreeText, text: m.textBuf.String(), contentType: ir.ContentMain})
				m.textBuf.Reset()
			}
			ctx := spanContext{role: roleGeneric}
			if r, ok := attrValue(t, "ttm:role", "role"); ok && r == "x-bg" {
				ctx.role = roleBackground
			}
			ctx.startMS = s.timeAttr(t, "begin")
			ctx.endMS = s.timeAttr(t, "end")
			m.spanStack = append(m.spanStack, ctx)
		}
	}
}

func (s *parserState) metadataText(text string) {
	m := s.meta
	switch {
	case len(m.spanStack) > 0:
		m.textBuf.WriteString(text)
	case m.context == metaInAuxText:
		if text != "" {
			m.entry.pending = append(m.entry.pending,
				pendingItem{kind: pendingFreeText, text: text, contentType: ir.ContentMain})
			m.mainPlain.WriteString(text)
		}
	case m.context == metaInSongwriter:
		m.songwriter.WriteString(text)
	case m.context == metaInAgentName:
		m.agentName.WriteString(text)
	case m.context == metaInMeta:
		m.metaValue.WriteString(text)
	}
}

func (s *parserState) metadataEnd(t xml.EndElement) {
	m := s.meta
	switch t.Name.Local {
	case "metadata":
		s.inMetadata = false
		m.context = metaNone

	case "agent":
		if m.context == metaInAgent {
			m.context = metaNone
		}

	case "name":
		if m.context == metaInAgentName {
			if name := strings.TrimSpace(m.agentName.String()); name != "" {
				if a := s.agents.Get(m.agentID); a != nil {
					a.Name = name
					s.agentByName[name] = a.ID
				}
			}
			m.context = metaInAgent
		}

	case "meta":
		if m.context == metaInMeta {
			if !m.hasMetaValueAttr {
				if v := strings.TrimSpace(m.metaValue.String()); v != "" {
					s.rawMetadata[m.metaKey] = append(s.rawMetadata[m.metaKey], v)
				}
			}
			m.context = m.metaPrev
		}

	case "iTunesMetadata":
		m.context = metaNone

	case "songwriter":
		if m.context == metaInSongwriter {
			if v := strings.TrimSpace(m.songwriter.String()); v != "" {
				s.rawMetadata["songwriters"] = append(s.rawMetadata["songwriters"], v)
			}
			m.context = metaInITunesMetadata
		}

	case "translations", "transliterations":
		if m.context == metaInAuxContainer {
			m.context = metaInITunesMetadata
		}

	case "translation", "transliteration":
		if m.context == metaInAuxEntry {
			m.context = metaInAuxContainer
		}

	case "span":
		if m.context == metaInAuxText {
			s.endMetadataSpan()
		}

	case "text":
		if m.context == metaInAuxText {
			s.finalizeAuxEntry()
			m.context = metaInAuxEntry
		}
	}
}

// endMetadataSpan closes one span of a metadata <text> entry. Timed spans
// become pending syllables; untimed text accumulates as the entry's plain
// text, which later classifies the entry as line-level.
func (s *parserState) endMetadataSpan() {
	m := s.meta
	if len(m.spanStack) == 0 {
		return
	}
	ctx := m.spanStack[len(m.spanStack)-1]
	m.spanStack = m.spanStack[:len(m.spanStack)-1]
	raw := m.textBuf.String()
	m.textBuf.Reset()

	bg := ctx.role == roleBackground || backgroundAncestor(m.spanStack)
	ct := ir.ContentMain
	if bg {
		ct = ir.ContentBackground
	}

	if ctx.timed() {
		if strings.TrimSpace(raw) == "" {
			if raw != "" {
				m.entry.pending = append(m.entry.pending,
					pendingItem{kind: pendingFreeText, text: raw, contentType: ct})
			}
			return
		}
		start, end := *ctx.startMS, *ctx.endMS
		if start > end {
			s.warnf("auxiliary syllable %q begins at %dms but ends at %dms; clamping the end", strings.TrimSpace(raw), start, end)
			end = start
		}
		m.entry.pending = append(m.entry.pending, pendingItem{
			kind:        pendingSyllable,
			text:        raw,
			startMS:     start,
			endMS:       end,
			contentType: ct,
		})
		return
	}

	if strings.TrimSpace(raw) != "" {
		if bg {
			m.bgPlain.WriteString(raw)
		} else {
			m.mainPlain.WriteString(raw)
		}
		m.entry.pending = append(m.entry.pending,
			pendingItem{kind: pendingFreeText, text: raw, contentType: ct})
	}
}

// finalizeAuxEntry classifies one closed <text> entry. Entries with no
// timed syllable are line-level text for the target line; entries with
// syllables become word-timed auxiliary tracks, split by layer.
func (s *parserState) finalizeAuxEntry() {
	m := s.meta
	key := m.auxKey

	hasSyllables := false
	for i := range m.entry.pending {
		if m.entry.pending[i].kind == pendingSyllable {
			hasSyllables = true
			break
		}
	}

	if !hasSyllables {
		mainText := encoding.NormalizeWhitespace(m.mainPlain.String())
		bgText := encoding.StripOuterParens(encoding.NormalizeWhitespace(m.bgPlain.String()))
		if mainText == "" && bgText == "" {
			return
		}
		if key == "" {
			s.warnf("auxiliary text entry without a line key; dropping %q", mainText)
			return
		}
		m.lineAux[key] = append(m.lineAux[key], lineAuxEntry{
			kind:     m.auxKind,
			lang:     m.auxLang,
			mainText: mainText,
			bgText:   bgText,
		})
		return
	}

	if key == "" {
		s.warnf("timed auxiliary text entry without a line key; dropping it")
		return
	}

	var mainTr, bgTr ir.Track
	for i := range m.entry.pending {
		it := &m.entry.pending[i]
		if it.kind != pendingSyllable {
			continue
		}
		tr := &mainTr
		if it.contentType == ir.ContentBackground {
			tr = &bgTr
		}
		appendContentSyllable(tr, it.text, it.startMS, it.endMS, it.contentType == ir.ContentBackground)
		if i+1 < len(m.entry.pending) {
			next := &m.entry.pending[i+1]
			if next.kind == pendingFreeText && next.isWhitespaceOnly() && s.spaceSignificant(next.text) {
				setTrailingSpace(tr)
			}
		}
	}

	lang := m.auxLang
	if lang == "" {
		if m.auxKind == auxRomanization {
			lang = s.opts.DefaultRomanizationLanguage
		} else {
			lang = s.opts.DefaultTranslationLanguage
		}
	}

	aux := m.timedAuxFor(key)
	if !mainTr.IsEmpty() {
		mainTr.SetMetadata(ir.TrackMetaLanguage, lang)
		aux.main.add(m.auxKind, mainTr)
	}
	if !bgTr.IsEmpty() {
		bgTr.SetMetadata(ir.TrackMetaLanguage, lang)
		aux.background.add(m.auxKind, bgTr)
	}
}

// agentTypeFrom maps a declaration's type attribute. A missing attribute
// means person; unknown non-empty values stay other.
func agentTypeFrom(v string) ir.AgentType {
	switch v {
	case "", "person":
		return ir.AgentPerson
	case "group":
		return ir.AgentGroup
	default:
		return ir.AgentOther
	}
}
