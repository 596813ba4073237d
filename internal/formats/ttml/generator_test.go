package ttml

import (
	"strings"
	"testing"

	"github.com/lyricore/lyricore/core/ir"
	"github.com/lyricore/lyricore/core/metadata"
)

func wordTrack(syls ...ir.Syllable) ir.Track {
	return ir.Track{Words: []ir.Word{{Syllables: syls}}}
}

func mainLine(start, end uint64, syls ...ir.Syllable) ir.Line {
	return ir.Line{
		StartMS: start,
		EndMS:   end,
		Tracks: []ir.AnnotatedTrack{
			{ContentType: ir.ContentMain, Content: wordTrack(syls...)},
		},
	}
}

func mustGenerate(t *testing.T, lines []ir.Line, store *metadata.Store, agents *ir.AgentStore, opts *GenerateOptions) string {
	t.Helper()
	out, err := Generate(lines, store, agents, opts)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	return out
}

func TestGenerateWordTimedCompact(t *testing.T) {
	lines := []ir.Line{mainLine(1000, 3000,
		ir.Syllable{Text: "Hello", StartMS: 1000, EndMS: 2000, EndsWithSpace: true},
		ir.Syllable{Text: "world", StartMS: 2000, EndMS: 3000},
	)}

	got := mustGenerate(t, lines, nil, nil, nil)
	want := `<tt xmlns="http://www.w3.org/ns/ttml" xmlns:ttm="http://www.w3.org/ns/ttml#metadata" xmlns:itunes="http://music.apple.com/lyric-ttml-internal" itunes:timing="Word">` +
		`<head><metadata><ttm:agent type="person" xml:id="v1"/></metadata></head>` +
		`<body dur="3.000"><div begin="1.000" end="3.000">` +
		`<p begin="1.000" end="3.000" itunes:key="L1" ttm:agent="v1">` +
		`<span begin="1.000" end="2.000">Hello</span> <span begin="2.000" end="3.000">world</span>` +
		`</p></div></body></tt>`
	if got != want {
		t.Errorf("output mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestGenerateLineMode(t *testing.T) {
	lines := []ir.Line{mainLine(5000, 9000,
		ir.Syllable{Text: "Quiet moments pass", StartMS: 5000, EndMS: 9000},
	)}

	got := mustGenerate(t, lines, nil, nil, &GenerateOptions{TimingMode: TimingLine, AppleFormatRules: true})
	if !strings.Contains(got, `itunes:timing="Line"`) {
		t.Error("missing line timing declaration")
	}
	if !strings.Contains(got, `<p begin="5.000" end="9.000" itunes:key="L1" ttm:agent="v1">Quiet moments pass</p>`) {
		t.Errorf("line-mode paragraph not rendered as plain text:\n%s", got)
	}
	if strings.Contains(got, `<p`) && strings.Contains(got, `</p>`) && strings.Contains(got, `Quiet moments pass<span`) {
		t.Error("line-mode paragraph contains stray spans")
	}
}

func TestGenerateAppleHeadTranslations(t *testing.T) {
	line := mainLine(1000, 3000,
		ir.Syllable{Text: "Hola", StartMS: 1000, EndMS: 3000},
	)
	tr := ir.NewTextTrack("Hello", 1000, 3000)
	tr.SetMetadata(ir.TrackMetaLanguage, "en")
	line.Tracks[0].Translations = append(line.Tracks[0].Translations, tr)

	got := mustGenerate(t, []ir.Line{line}, nil, nil, nil)
	if !strings.Contains(got, `<iTunesMetadata><translations><translation type="subtitle" xml:lang="en">`) {
		t.Errorf("missing head translation group:\n%s", got)
	}
	if !strings.Contains(got, `<text for="L1">Hello</text>`) {
		t.Errorf("missing plain translation entry:\n%s", got)
	}
	if strings.Contains(got, `x-translation`) {
		t.Error("Apple output still carries inline translation spans")
	}
}

func TestGenerateAppleTimedRomanization(t *testing.T) {
	line := mainLine(1000, 3000,
		ir.Syllable{Text: "平気", StartMS: 1000, EndMS: 3000},
	)
	rom := wordTrack(
		ir.Syllable{Text: "hei", StartMS: 1000, EndMS: 2000, EndsWithSpace: true},
		ir.Syllable{Text: "ki", StartMS: 2000, EndMS: 3000},
	)
	rom.SetMetadata(ir.TrackMetaLanguage, "ja-Latn")
	line.Tracks[0].Romanizations = append(line.Tracks[0].Romanizations, rom)

	got := mustGenerate(t, []ir.Line{line}, nil, nil, nil)
	if !strings.Contains(got, `<transliterations><transliteration xml:lang="ja-Latn">`) {
		t.Errorf("missing transliteration group:\n%s", got)
	}
	want := `<text for="L1"><span begin="1.000" end="2.000">hei </span><span begin="2.000" end="3.000">ki</span></text>`
	if !strings.Contains(got, want) {
		t.Errorf("timed head entry mismatch, want %s in:\n%s", want, got)
	}
}

func TestGenerateInlineAuxWhenNotApple(t *testing.T) {
	line := mainLine(1000, 3000,
		ir.Syllable{Text: "Hola", StartMS: 1000, EndMS: 3000},
	)
	tr := ir.NewTextTrack("Hello", 1000, 3000)
	tr.SetMetadata(ir.TrackMetaLanguage, "en")
	line.Tracks[0].Translations = append(line.Tracks[0].Translations, tr)

	got := mustGenerate(t, []ir.Line{line}, nil, nil, &GenerateOptions{TimingMode: TimingWord})
	if strings.Contains(got, "iTunesMetadata") {
		t.Error("non-Apple output carries an iTunesMetadata block")
	}
	if !strings.Contains(got, `<span ttm:role="x-translation" xml:lang="en">Hello</span>`) {
		t.Errorf("missing inline translation span:\n%s", got)
	}
}

func TestGenerateBackgroundDecoration(t *testing.T) {
	line := mainLine(0, 4000,
		ir.Syllable{Text: "Lead", StartMS: 0, EndMS: 1000},
	)
	line.Tracks = append(line.Tracks, ir.AnnotatedTrack{
		ContentType: ir.ContentBackground,
		Content: wordTrack(
			ir.Syllable{Text: "Back", StartMS: 2000, EndMS: 3000},
			ir.Syllable{Text: "ing", StartMS: 3000, EndMS: 4000},
		),
	})

	got := mustGenerate(t, []ir.Line{line}, nil, nil, nil)
	want := `<span ttm:role="x-bg" begin="2.000" end="4.000">` +
		`<span begin="2.000" end="3.000">(Back</span><span begin="3.000" end="4.000">ing)</span></span>`
	if !strings.Contains(got, want) {
		t.Errorf("background span mismatch, want %s in:\n%s", want, got)
	}
}

func TestGenerateSongPartDivs(t *testing.T) {
	lines := []ir.Line{
		mainLine(0, 1000, ir.Syllable{Text: "one", StartMS: 0, EndMS: 1000}),
		mainLine(1000, 2000, ir.Syllable{Text: "two", StartMS: 1000, EndMS: 2000}),
		mainLine(2000, 3000, ir.Syllable{Text: "three", StartMS: 2000, EndMS: 3000}),
	}
	lines[0].SongPart = "verse"
	lines[1].SongPart = "verse"
	lines[2].SongPart = "chorus"

	got := mustGenerate(t, lines, nil, nil, nil)
	if n := strings.Count(got, "<div "); n != 2 {
		t.Errorf("got %d divs, want 2 for the two song-part runs:\n%s", n, got)
	}
	if !strings.Contains(got, `<div begin="0.000" end="2.000" itunes:songPart="verse">`) {
		t.Errorf("missing verse div:\n%s", got)
	}
	if !strings.Contains(got, `<div begin="2.000" end="3.000" itunes:songPart="chorus">`) {
		t.Errorf("missing chorus div:\n%s", got)
	}
}

func TestGenerateAMLLMetadata(t *testing.T) {
	store := metadata.NewStore()
	store.Add(string(metadata.KeyTitle), "Night Drive")
	store.Add(string(metadata.KeyArtist), "The Headlights")

	lines := []ir.Line{mainLine(0, 1000, ir.Syllable{Text: "hi", StartMS: 0, EndMS: 1000})}
	got := mustGenerate(t, lines, store, nil, nil)

	if !strings.Contains(got, `xmlns:amll="http://www.example.com/ns/amll"`) {
		t.Error("amll namespace not declared despite amll metadata")
	}
	if !strings.Contains(got, `<amll:meta key="musicName" value="Night Drive"/>`) {
		t.Errorf("missing musicName meta:\n%s", got)
	}
	if !strings.Contains(got, `<amll:meta key="artists" value="The Headlights"/>`) {
		t.Errorf("missing artists meta:\n%s", got)
	}
}

func TestGenerateNoAMLLNamespaceWithoutMetas(t *testing.T) {
	lines := []ir.Line{mainLine(0, 1000, ir.Syllable{Text: "hi", StartMS: 0, EndMS: 1000})}
	got := mustGenerate(t, lines, nil, nil, nil)
	if strings.Contains(got, "xmlns:amll") {
		t.Error("amll namespace declared with no amll metadata")
	}
}

func TestGenerateEscaping(t *testing.T) {
	store := metadata.NewStore()
	store.Add(string(metadata.KeyTitle), `Q & "A"`)
	lines := []ir.Line{mainLine(0, 1000, ir.Syllable{Text: "a < b & c", StartMS: 0, EndMS: 1000})}

	got := mustGenerate(t, lines, store, nil, nil)
	if !strings.Contains(got, ">a &lt; b &amp; c</span>") {
		t.Errorf("text not escaped:\n%s", got)
	}
	if !strings.Contains(got, `value="Q &amp; &quot;A&quot;"`) {
		t.Errorf("attribute not escaped:\n%s", got)
	}
}

func TestGeneratePrettyOutput(t *testing.T) {
	lines := []ir.Line{mainLine(1000, 3000,
		ir.Syllable{Text: "Hello", StartMS: 1000, EndMS: 2000, EndsWithSpace: true},
		ir.Syllable{Text: "world", StartMS: 2000, EndMS: 3000},
	)}

	opts := DefaultGenerateOptions()
	opts.Format = true
	got := mustGenerate(t, lines, nil, nil, opts)

	if !strings.HasSuffix(got, "</tt>\n") {
		t.Error("pretty output should end with a trailing newline")
	}
	if !strings.Contains(got, "\n  <head>\n") {
		t.Errorf("pretty output not indented:\n%s", got)
	}
	// Pretty mode keeps word boundaries inside the span text.
	if !strings.Contains(got, `<span begin="1.000" end="2.000">Hello </span>`) {
		t.Errorf("missing in-span trailing space:\n%s", got)
	}
}

func TestGenerateEmptyDocument(t *testing.T) {
	got := mustGenerate(t, nil, nil, nil, nil)
	if !strings.Contains(got, "<body/>") {
		t.Errorf("empty document should carry a self-closing body:\n%s", got)
	}
}

func TestGenerateAgentDeclarations(t *testing.T) {
	agents := ir.NewAgentStore()
	agents.Register(&ir.Agent{ID: "v2", Name: "Ella", Type: ir.AgentPerson})

	lines := []ir.Line{
		mainLine(0, 1000, ir.Syllable{Text: "one", StartMS: 0, EndMS: 1000}),
		mainLine(1000, 2000, ir.Syllable{Text: "two", StartMS: 1000, EndMS: 2000}),
	}
	lines[0].Agent = "v2"
	lines[1].Agent = ir.ChorusAgentID

	got := mustGenerate(t, lines, nil, agents, nil)
	if !strings.Contains(got, `<ttm:agent type="person" xml:id="v2"><ttm:name type="full">Ella</ttm:name></ttm:agent>`) {
		t.Errorf("missing named agent declaration:\n%s", got)
	}
	if !strings.Contains(got, `<ttm:agent type="group" xml:id="v1000"/>`) {
		t.Errorf("missing synthesized chorus agent:\n%s", got)
	}
	if idx2, idx1000 := strings.Index(got, `xml:id="v2"`), strings.Index(got, `xml:id="v1000"`); idx2 > idx1000 {
		t.Error("agents not sorted by ordinal")
	}
}

// A document without registered agents derives declarations from its raw
// "agent" metadata entries.
func TestGenerateDocumentAgentsFromRawMetadata(t *testing.T) {
	doc := &ir.Document{
		Lines: []ir.Line{mainLine(0, 1000,
			ir.Syllable{Text: "hi", StartMS: 0, EndMS: 1000},
		)},
		RawMetadata: map[string][]string{
			"agent": {"v2=Ella", ir.ChorusAgentID},
		},
	}
	doc.Lines[0].Agent = "v2"

	got, err := GenerateDocument(doc, nil)
	if err != nil {
		t.Fatalf("GenerateDocument error: %v", err)
	}
	if !strings.Contains(got, `<ttm:agent type="person" xml:id="v2"><ttm:name type="full">Ella</ttm:name></ttm:agent>`) {
		t.Errorf("missing agent derived from raw metadata:\n%s", got)
	}
	if !strings.Contains(got, `<ttm:agent type="group" xml:id="v1000"/>`) {
		t.Errorf("missing chorus group derived from raw metadata:\n%s", got)
	}
}

// Round trip: generated output parses back to the same semantics, and a
// second generation of the reparsed document is byte-identical.
func TestGenerateParseRoundTrip(t *testing.T) {
	line := ir.Line{StartMS: 1000, EndMS: 4000}
	main := line.EnsureTrack(ir.ContentMain)
	main.Content = wordTrack(
		ir.Syllable{Text: "Hello", StartMS: 1000, EndMS: 2000, EndsWithSpace: true},
		ir.Syllable{Text: "world", StartMS: 2000, EndMS: 3000},
	)
	tr := ir.NewTextTrack("Hola mundo", 1000, 4000)
	tr.SetMetadata(ir.TrackMetaLanguage, "es")
	main.Translations = append(main.Translations, tr)
	bg := line.EnsureTrack(ir.ContentBackground)
	bg.Content = wordTrack(
		ir.Syllable{Text: "Back", StartMS: 3000, EndMS: 3500},
		ir.Syllable{Text: "ing", StartMS: 3500, EndMS: 4000},
	)

	line2 := mainLine(4000, 5000, ir.Syllable{Text: "again", StartMS: 4000, EndMS: 5000})
	line2.SongPart = "chorus"
	line2.Agent = "v2"

	store := metadata.NewStore()
	store.Add(string(metadata.KeyTitle), "Night Drive")
	store.Add(string(metadata.KeySongwriter), "A. Writer")
	store.Add(string(metadata.KeyLanguage), "en")

	out1, err := Generate([]ir.Line{line, line2}, store, nil, nil)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	res, err := Parse(out1, nil)
	if err != nil {
		t.Fatalf("Parse of generated output failed: %v", err)
	}
	doc := res.Document
	if len(doc.Warnings) != 0 {
		t.Errorf("generated output produced warnings: %v", doc.Warnings)
	}
	if res.LineTimed {
		t.Error("generated word-timed output detected as line-timed")
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("got %d lines after round trip, want 2", len(doc.Lines))
	}

	got := &doc.Lines[0]
	if got.StartMS != 1000 || got.EndMS != 4000 {
		t.Errorf("line times = %d..%d, want 1000..4000", got.StartMS, got.EndMS)
	}
	if text := got.MainTrack().Content.DisplayText(); text != "Hello world" {
		t.Errorf("main content = %q, want Hello world", text)
	}
	if trs := got.MainTrack().Translations; len(trs) != 1 || trs[0].DisplayText() != "Hola mundo" || trs[0].Language() != "es" {
		t.Errorf("translations = %+v, want [Hola mundo/es]", trs)
	}
	if bgGot := got.BackgroundTrack(); bgGot == nil || bgGot.Content.DisplayText() != "Backing" {
		t.Errorf("background lost in round trip: %+v", bgGot)
	}
	if doc.Lines[1].SongPart != "chorus" || doc.Lines[1].Agent != "v2" {
		t.Errorf("line 2 = part %q agent %q, want chorus/v2", doc.Lines[1].SongPart, doc.Lines[1].Agent)
	}

	out2, err := GenerateDocument(doc, nil)
	if err != nil {
		t.Fatalf("second Generate error: %v", err)
	}
	if out1 != out2 {
		t.Errorf("generation not idempotent\nfirst:  %s\nsecond: %s", out1, out2)
	}
}
