package ttml

import (
	"strings"

	"github.com/lyricore/lyricore/core/encoding"
	"github.com/lyricore/lyricore/core/ir"
)

func (g *generator) writeBody() {
	if len(g.lines) == 0 {
		g.w.line("<body/>")
		return
	}

	var dur uint64
	for i := range g.lines {
		if g.lines[i].EndMS > dur {
			dur = g.lines[i].EndMS
		}
	}
	g.w.open(`<body dur="` + FormatClock(dur) + `">`)

	// Consecutive lines with the same song part share one div.
	for from := 0; from < len(g.lines); {
		to := from + 1
		for to < len(g.lines) && g.lines[to].SongPart == g.lines[from].SongPart {
			to++
		}
		g.writeDiv(from, to)
		from = to
	}

	g.w.close("</body>")
}

func (g *generator) writeDiv(from, to int) {
	begin := g.lines[from].StartMS
	var end uint64
	for i := from; i < to; i++ {
		if g.lines[i].EndMS > end {
			end = g.lines[i].EndMS
		}
	}

	tag := `<div begin="` + FormatClock(begin) + `" end="` + FormatClock(end) + `"`
	if part := g.lines[from].SongPart; part != "" {
		tag += ` itunes:songPart="` + encoding.EscapeXMLAttr(part) + `"`
	}
	g.w.open(tag + ">")
	for i := from; i < to; i++ {
		g.writeParagraph(i)
	}
	g.w.close("</div>")
}

func (g *generator) writeParagraph(i int) {
	line := &g.lines[i]
	openTag := `<p begin="` + FormatClock(line.StartMS) + `" end="` + FormatClock(line.EndMS) +
		`" itunes:key="` + g.keys[i] + `" ttm:agent="` + encoding.EscapeXMLAttr(agentIDFor(line)) + `">`

	mainAT := line.MainTrack()
	bgAT := line.BackgroundTrack()

	if !g.wordMode {
		var sb strings.Builder
		sb.WriteString(openTag)
		if mainAT != nil {
			sb.WriteString(encoding.EscapeXMLText(mainAT.Content.DisplayText()))
			if !g.opts.AppleFormatRules {
				g.appendInlineAux(&sb, mainAT)
			}
		}
		if frag := g.backgroundSpan(bgAT); frag != "" {
			sb.WriteString(frag)
		}
		sb.WriteString("</p>")
		g.w.line(sb.String())
		return
	}

	if g.w.pretty {
		g.w.open(openTag)
		if mainAT != nil {
			for _, s := range g.contentSyllables(&mainAT.Content) {
				g.w.line(syllableSpan(s.Text, s.StartMS, s.EndMS, s.EndsWithSpace))
			}
			if !g.opts.AppleFormatRules {
				var sb strings.Builder
				g.appendInlineAux(&sb, mainAT)
				if sb.Len() > 0 {
					g.w.line(sb.String())
				}
			}
		}
		if frag := g.backgroundSpan(bgAT); frag != "" {
			g.w.line(frag)
		}
		g.w.close("</p>")
		return
	}

	var sb strings.Builder
	sb.WriteString(openTag)
	if mainAT != nil {
		syls := g.contentSyllables(&mainAT.Content)
		for idx, s := range syls {
			sb.WriteString(syllableSpan(s.Text, s.StartMS, s.EndMS, false))
			if s.EndsWithSpace && idx < len(syls)-1 {
				sb.WriteString(" ")
			}
		}
		if !g.opts.AppleFormatRules {
			g.appendInlineAux(&sb, mainAT)
		}
	}
	if frag := g.backgroundSpan(bgAT); frag != "" {
		sb.WriteString(frag)
	}
	sb.WriteString("</p>")
	g.w.line(sb.String())
}

// backgroundSpan renders a line's background layer as one x-bg span, with
// the decorative parentheses restored. Returns "" when the layer has
// nothing to say in the body.
func (g *generator) backgroundSpan(at *ir.AnnotatedTrack) string {
	if at == nil {
		return ""
	}
	hasAux := !g.opts.AppleFormatRules && (len(at.Translations) > 0 || len(at.Romanizations) > 0)
	if at.Content.IsEmpty() && !hasAux {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<span ttm:role="x-bg"`)
	syls := g.contentSyllables(&at.Content)
	if start, end, ok := at.Content.TimeRange(); ok {
		sb.WriteString(` begin="` + FormatClock(start) + `" end="` + FormatClock(end) + `"`)
	}
	sb.WriteString(">")

	switch {
	case at.Content.IsEmpty():
	case !g.wordMode:
		sb.WriteString(encoding.EscapeXMLText("(" + at.Content.DisplayText() + ")"))
	default:
		for idx, s := range syls {
			text := decorateBackground(s.Text, idx == 0, idx == len(syls)-1)
			sb.WriteString(syllableSpan(text, s.StartMS, s.EndMS, g.w.pretty && s.EndsWithSpace))
			if !g.w.pretty && s.EndsWithSpace && idx < len(syls)-1 {
				sb.WriteString(" ")
			}
		}
	}

	if hasAux {
		g.appendInlineAux(&sb, at)
	}
	sb.WriteString("</span>")
	return sb.String()
}

func (g *generator) appendInlineAux(sb *strings.Builder, at *ir.AnnotatedTrack) {
	for i := range at.Translations {
		sb.WriteString(g.inlineAuxSpan(&at.Translations[i], "x-translation"))
	}
	for i := range at.Romanizations {
		sb.WriteString(g.inlineAuxSpan(&at.Romanizations[i], "x-roman"))
	}
}

// inlineAuxSpan renders one auxiliary track as a role span. A word-timed
// track becomes a timed wrapper with one nested span per syllable.
func (g *generator) inlineAuxSpan(tr *ir.Track, role string) string {
	var sb strings.Builder
	sb.WriteString(`<span ttm:role="` + role + `"`)
	if lang := tr.Language(); lang != "" {
		sb.WriteString(` xml:lang="` + encoding.EscapeXMLAttr(lang) + `"`)
	}
	if scheme := tr.Metadata[ir.TrackMetaScheme]; scheme != "" {
		sb.WriteString(` xml:scheme="` + encoding.EscapeXMLAttr(scheme) + `"`)
	}

	if g.wordMode && tr.IsTimed() {
		start, end, _ := tr.TimeRange()
		sb.WriteString(` begin="` + FormatClock(start) + `" end="` + FormatClock(end) + `">`)
		for _, s := range trackSyllables(tr) {
			sb.WriteString(syllableSpan(s.Text, s.StartMS, s.EndMS, s.EndsWithSpace))
		}
	} else {
		sb.WriteString(">" + encoding.EscapeXMLText(tr.DisplayText()))
	}
	sb.WriteString("</span>")
	return sb.String()
}

// contentSyllables returns a content track's syllables, split into
// per-character-class tokens when word splitting is enabled.
func (g *generator) contentSyllables(tr *ir.Track) []ir.Syllable {
	syls := trackSyllables(tr)
	if g.wordMode && g.opts.AutoWordSplitting {
		syls = splitSyllables(syls, g.opts.PunctuationWeight)
	}
	return syls
}
