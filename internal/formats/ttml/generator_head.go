package ttml

import (
	"strings"

	"github.com/lyricore/lyricore/core/encoding"
	"github.com/lyricore/lyricore/core/ir"
	"github.com/lyricore/lyricore/core/metadata"
)

// auxGroup is one head-section auxiliary block: every line's track of one
// kind in one language. A group containing any word-timed track is
// emitted timed as a whole, so a language's entries stay uniform.
type auxGroup struct {
	lang    string
	timed   bool
	entries []auxGroupEntry
}

type auxGroupEntry struct {
	key  string
	main *ir.Track
	bg   *ir.Track
}

type amllMeta struct {
	key   string
	value string
}

// amllKeyMap maps canonical metadata keys onto their amll:meta spelling,
// in emission order.
var amllKeyMap = []struct {
	key  metadata.Key
	amll string
}{
	{metadata.KeyTitle, "musicName"},
	{metadata.KeyArtist, "artists"},
	{metadata.KeyAlbum, "album"},
	{metadata.KeyIsrc, "isrc"},
	{metadata.KeyAppleMusicID, "appleMusicId"},
	{metadata.KeyNcmMusicID, "ncmMusicId"},
	{metadata.KeySpotifyID, "spotifyId"},
	{metadata.KeyQqMusicID, "qqMusicId"},
	{metadata.KeyTtmlAuthorGithub, "ttmlAuthorGithub"},
	{metadata.KeyTtmlAuthorGithubLogin, "ttmlAuthorGithubLogin"},
}

func (g *generator) collectAuxGroups() {
	if g.opts.AppleFormatRules {
		g.translations = g.groupAux(auxTranslation)
		g.romanizations = g.groupAux(auxRomanization)
	}
	g.amllMetas = g.collectAMLLMetas()
	g.hasAMLLMetadata = len(g.amllMetas) > 0
	g.hasITunesBlock = len(g.store.Values(metadata.KeySongwriter)) > 0 ||
		len(g.translations) > 0 || len(g.romanizations) > 0
}

func (g *generator) groupAux(kind auxKind) []auxGroup {
	index := make(map[string]int)
	var groups []auxGroup

	for i := range g.lines {
		line := &g.lines[i]
		var mainTracks, bgTracks []*ir.Track
		if at := line.MainTrack(); at != nil {
			mainTracks = tracksOfKind(at, kind)
		}
		if at := line.BackgroundTrack(); at != nil {
			bgTracks = tracksOfKind(at, kind)
		}

		for _, lang := range auxLanguages(mainTracks, bgTracks) {
			gi, ok := index[lang]
			if !ok {
				gi = len(groups)
				index[lang] = gi
				groups = append(groups, auxGroup{lang: lang})
			}
			e := auxGroupEntry{
				key:  g.keys[i],
				main: firstWithLanguage(mainTracks, lang),
				bg:   firstWithLanguage(bgTracks, lang),
			}
			groups[gi].entries = append(groups[gi].entries, e)
			if g.wordMode && ((e.main != nil && e.main.IsTimed()) || (e.bg != nil && e.bg.IsTimed())) {
				groups[gi].timed = true
			}
		}
	}
	return groups
}

func tracksOfKind(at *ir.AnnotatedTrack, kind auxKind) []*ir.Track {
	var out []*ir.Track
	if kind == auxRomanization {
		for i := range at.Romanizations {
			out = append(out, &at.Romanizations[i])
		}
		return out
	}
	for i := range at.Translations {
		out = append(out, &at.Translations[i])
	}
	return out
}

// auxLanguages returns the distinct languages of the given tracks, main
// layer first, in first-seen order.
func auxLanguages(mainTracks, bgTracks []*ir.Track) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tr := range mainTracks {
		if lang := tr.Language(); !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	for _, tr := range bgTracks {
		if lang := tr.Language(); !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	return out
}

func firstWithLanguage(tracks []*ir.Track, lang string) *ir.Track {
	for _, tr := range tracks {
		if tr.Language() == lang {
			return tr
		}
	}
	return nil
}

func (g *generator) collectAMLLMetas() []amllMeta {
	var out []amllMeta
	for _, e := range amllKeyMap {
		for _, v := range g.store.Values(e.key) {
			out = append(out, amllMeta{e.amll, v})
		}
	}
	for _, k := range g.store.Keys() {
		if k.IsCanonical() {
			continue
		}
		if strings.ToLower(string(k)) == "agent" {
			continue
		}
		for _, v := range g.store.Values(k) {
			out = append(out, amllMeta{string(k), v})
		}
	}
	return out
}

func (g *generator) writeHead() {
	g.w.open("<head>")
	g.w.open("<metadata>")
	for _, a := range g.agents {
		g.writeAgent(a)
	}
	if g.hasITunesBlock {
		g.writeITunesMetadata()
	}
	for _, m := range g.amllMetas {
		g.w.line(`<amll:meta key="` + encoding.EscapeXMLAttr(m.key) + `" value="` + encoding.EscapeXMLAttr(m.value) + `"/>`)
	}
	g.w.close("</metadata>")
	g.w.close("</head>")
}

func (g *generator) writeAgent(a *ir.Agent) {
	typ := string(a.Type)
	if typ == "" {
		typ = string(ir.AgentPerson)
	}
	attrs := `type="` + typ + `" xml:id="` + encoding.EscapeXMLAttr(a.ID) + `"`
	if a.Name == "" {
		g.w.line("<ttm:agent " + attrs + "/>")
		return
	}
	g.w.open("<ttm:agent " + attrs + ">")
	g.w.line(`<ttm:name type="full">` + encoding.EscapeXMLText(a.Name) + `</ttm:name>`)
	g.w.close("</ttm:agent>")
}

func (g *generator) writeITunesMetadata() {
	g.w.open("<iTunesMetadata>")
	if sw := g.store.Values(metadata.KeySongwriter); len(sw) > 0 {
		g.w.open("<songwriters>")
		for _, v := range sw {
			g.w.line("<songwriter>" + encoding.EscapeXMLText(v) + "</songwriter>")
		}
		g.w.close("</songwriters>")
	}
	if len(g.translations) > 0 {
		g.w.open("<translations>")
		for i := range g.translations {
			g.writeAuxGroup(&g.translations[i], auxTranslation)
		}
		g.w.close("</translations>")
	}
	if len(g.romanizations) > 0 {
		g.w.open("<transliterations>")
		for i := range g.romanizations {
			g.writeAuxGroup(&g.romanizations[i], auxRomanization)
		}
		g.w.close("</transliterations>")
	}
	g.w.close("</iTunesMetadata>")
}

func (g *generator) writeAuxGroup(grp *auxGroup, kind auxKind) {
	tag := "translation"
	openTag := `<translation type="subtitle"`
	if kind == auxRomanization {
		tag = "transliteration"
		openTag = `<transliteration`
	}
	if grp.lang != "" {
		openTag += ` xml:lang="` + encoding.EscapeXMLAttr(grp.lang) + `"`
	}
	g.w.open(openTag + ">")
	for i := range grp.entries {
		if grp.timed {
			g.writeTimedAuxEntry(&grp.entries[i])
		} else {
			g.writePlainAuxEntry(&grp.entries[i])
		}
	}
	g.w.close("</" + tag + ">")
}

func (g *generator) writePlainAuxEntry(e *auxGroupEntry) {
	main, bg := "", ""
	if e.main != nil {
		main = e.main.DisplayText()
	}
	if e.bg != nil {
		bg = e.bg.DisplayText()
	}
	if main == "" && bg == "" {
		return
	}
	var sb strings.Builder
	sb.WriteString(`<text for="` + e.key + `">`)
	sb.WriteString(encoding.EscapeXMLText(main))
	if bg != "" {
		sb.WriteString(`<span ttm:role="x-bg">` + encoding.EscapeXMLText("("+bg+")") + `</span>`)
	}
	sb.WriteString("</text>")
	g.w.line(sb.String())
}

func (g *generator) writeTimedAuxEntry(e *auxGroupEntry) {
	var sb strings.Builder
	sb.WriteString(`<text for="` + e.key + `">`)
	if e.main != nil {
		for _, s := range trackSyllables(e.main) {
			sb.WriteString(syllableSpan(s.Text, s.StartMS, s.EndMS, s.EndsWithSpace))
		}
	}
	if e.bg != nil && !e.bg.IsEmpty() {
		sb.WriteString(`<span ttm:role="x-bg">`)
		syls := trackSyllables(e.bg)
		for i, s := range syls {
			text := decorateBackground(s.Text, i == 0, i == len(syls)-1)
			sb.WriteString(syllableSpan(text, s.StartMS, s.EndMS, s.EndsWithSpace))
		}
		sb.WriteString("</span>")
	}
	sb.WriteString("</text>")
	g.w.line(sb.String())
}

// syllableSpan renders one timed span. A trailing word boundary lives
// inside the span text, where whitespace is always significant.
func syllableSpan(text string, start, end uint64, trailingSpace bool) string {
	t := encoding.EscapeXMLText(text)
	if trailingSpace {
		t += " "
	}
	return `<span begin="` + FormatClock(start) + `" end="` + FormatClock(end) + `">` + t + `</span>`
}

// decorateBackground restores the parenthesis decoration background vocals
// carry on the wire.
func decorateBackground(text string, first, last bool) string {
	if first {
		text = "(" + text
	}
	if last {
		text += ")"
	}
	return text
}

func trackSyllables(tr *ir.Track) []ir.Syllable {
	var out []ir.Syllable
	tr.Syllables(func(s *ir.Syllable) bool {
		out = append(out, *s)
		return true
	})
	return out
}
