package ttml

import "github.com/lyricore/lyricore/core/ir"

// resolveCrossReferences binds metadata-declared auxiliary content to body
// lines by line key. It runs once, after the whole document is consumed,
// so the result is the same whether the metadata section preceded or
// followed the body.
func (s *parserState) resolveCrossReferences() {
	m := s.meta
	if len(m.lineAux) == 0 && len(m.timedAux) == 0 {
		return
	}

	for i := range s.lines {
		line := &s.lines[i]
		if line.Key == "" {
			continue
		}

		for _, e := range m.lineAux[line.Key] {
			lang := e.lang
			if lang == "" {
				if e.kind == auxRomanization {
					lang = s.opts.DefaultRomanizationLanguage
				} else {
					lang = s.opts.DefaultTranslationLanguage
				}
			}
			if e.mainText != "" {
				// Only annotate a main layer that exists; a key pointing
				// at a background-only line has nothing to translate.
				if at := line.MainTrack(); at != nil {
					addAux(at, e.kind, newAuxTrack(e.mainText, lang, line))
				}
			}
			if e.bgText != "" {
				addAux(line.EnsureTrack(ir.ContentBackground), e.kind, newAuxTrack(e.bgText, lang, line))
			}
		}

		if aux := m.timedAux[line.Key]; aux != nil {
			if at := line.MainTrack(); at != nil {
				for _, tr := range aux.main.translations {
					at.AddTranslation(tr)
				}
				for _, tr := range aux.main.romanizations {
					at.AddRomanization(tr)
				}
			}
			if at := line.BackgroundTrack(); at != nil {
				for _, tr := range aux.background.translations {
					at.AddTranslation(tr)
				}
				for _, tr := range aux.background.romanizations {
					at.AddRomanization(tr)
				}
			}
		}

		raiseLineEnd(line)
	}
}

func newAuxTrack(text, lang string, line *ir.Line) ir.Track {
	tr := ir.NewTextTrack(text, line.StartMS, line.EndMS)
	tr.SetMetadata(ir.TrackMetaLanguage, lang)
	return tr
}

func addAux(at *ir.AnnotatedTrack, kind auxKind, tr ir.Track) {
	if kind == auxRomanization {
		at.AddRomanization(tr)
	} else {
		at.AddTranslation(tr)
	}
}
