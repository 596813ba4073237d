package ir

import "testing"

func syllable(text string, start, end uint64, space bool) Syllable {
	return Syllable{Text: text, StartMS: start, EndMS: end, EndsWithSpace: space}
}

func wordTimedTrack(syls ...Syllable) Track {
	return Track{Words: []Word{{Syllables: syls}}}
}

func TestContentTypeIsValid(t *testing.T) {
	tests := []struct {
		ct   ContentType
		want bool
	}{
		{ContentMain, true},
		{ContentBackground, true},
		{ContentType("chorus"), false},
		{ContentType(""), false},
	}
	for _, tt := range tests {
		if got := tt.ct.IsValid(); got != tt.want {
			t.Errorf("ContentType(%q).IsValid() = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestTrackDisplayText(t *testing.T) {
	tests := []struct {
		name  string
		track Track
		want  string
	}{
		{
			name:  "empty track",
			track: Track{},
			want:  "",
		},
		{
			name:  "single syllable",
			track: wordTimedTrack(syllable("Hello", 0, 500, false)),
			want:  "Hello",
		},
		{
			name: "space flag between syllables",
			track: wordTimedTrack(
				syllable("Hello", 0, 500, true),
				syllable("world", 500, 1000, false),
			),
			want: "Hello world",
		},
		{
			name: "no space flag joins syllables",
			track: wordTimedTrack(
				syllable("Hel", 0, 200, false),
				syllable("lo", 200, 400, false),
			),
			want: "Hello",
		},
		{
			name:  "trailing space trimmed",
			track: wordTimedTrack(syllable("end", 0, 100, true)),
			want:  "end",
		},
		{
			name: "syllables across words",
			track: Track{Words: []Word{
				{Syllables: []Syllable{syllable("one", 0, 100, true)}},
				{Syllables: []Syllable{syllable("two", 100, 200, false)}},
			}},
			want: "one two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.DisplayText(); got != tt.want {
				t.Errorf("DisplayText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrackIsTimed(t *testing.T) {
	tests := []struct {
		name  string
		track Track
		want  bool
	}{
		{
			name:  "empty",
			track: Track{},
			want:  false,
		},
		{
			name:  "single syllable is line timed",
			track: wordTimedTrack(syllable("whole line", 0, 5000, false)),
			want:  false,
		},
		{
			name: "two timed syllables",
			track: wordTimedTrack(
				syllable("A", 0, 200, false),
				syllable("B", 200, 400, false),
			),
			want: true,
		},
		{
			name: "two zero-duration syllables",
			track: wordTimedTrack(
				syllable("A", 0, 0, false),
				syllable("B", 0, 0, false),
			),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.IsTimed(); got != tt.want {
				t.Errorf("IsTimed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackTimeRange(t *testing.T) {
	track := wordTimedTrack(
		syllable("b", 300, 400, false),
		syllable("a", 100, 250, false),
		syllable("c", 350, 900, false),
	)
	start, end, ok := track.TimeRange()
	if !ok {
		t.Fatal("TimeRange() ok = false, want true")
	}
	if start != 100 || end != 900 {
		t.Errorf("TimeRange() = (%d, %d), want (100, 900)", start, end)
	}

	if _, _, ok := (&Track{}).TimeRange(); ok {
		t.Error("TimeRange() on empty track: ok = true, want false")
	}
}

func TestTrackIsEmpty(t *testing.T) {
	if !(&Track{}).IsEmpty() {
		t.Error("empty track should be empty")
	}
	blank := wordTimedTrack(syllable("", 0, 100, false))
	if !blank.IsEmpty() {
		t.Error("track with only empty-text syllables should be empty")
	}
	full := wordTimedTrack(syllable("x", 0, 100, false))
	if full.IsEmpty() {
		t.Error("track with text should not be empty")
	}
}

func TestLineEnsureTrack(t *testing.T) {
	line := &Line{}

	main := line.EnsureTrack(ContentMain)
	if main == nil || main.ContentType != ContentMain {
		t.Fatal("EnsureTrack(Main) did not create a main track")
	}
	main.Content = NewTextTrack("hello", 0, 1000)

	// A second call must return the same track, not a duplicate.
	again := line.EnsureTrack(ContentMain)
	if again.Content.DisplayText() != "hello" {
		t.Errorf("EnsureTrack returned a fresh track, text = %q", again.Content.DisplayText())
	}
	if len(line.Tracks) != 1 {
		t.Errorf("len(Tracks) = %d, want 1", len(line.Tracks))
	}

	line.EnsureTrack(ContentBackground)
	if len(line.Tracks) != 2 {
		t.Errorf("len(Tracks) = %d after adding background, want 2", len(line.Tracks))
	}
	if line.BackgroundTrack() == nil {
		t.Error("BackgroundTrack() = nil after EnsureTrack(Background)")
	}
}

func TestLineIsEmpty(t *testing.T) {
	line := &Line{}
	if !line.IsEmpty() {
		t.Error("line with no tracks should be empty")
	}
	line.EnsureTrack(ContentMain)
	if !line.IsEmpty() {
		t.Error("line with empty main track should be empty")
	}
	line.MainTrack().Content = NewTextTrack("text", 0, 100)
	if line.IsEmpty() {
		t.Error("line with content should not be empty")
	}
}

func TestAnnotatedTrackAddTranslationIdempotent(t *testing.T) {
	at := &AnnotatedTrack{ContentType: ContentMain}

	en := NewTextTrack("hello", 0, 0)
	en.SetMetadata(TrackMetaLanguage, "en")
	at.AddTranslation(en)
	at.AddTranslation(en)
	if len(at.Translations) != 1 {
		t.Fatalf("duplicate translation not skipped: len = %d", len(at.Translations))
	}

	// Same text under a different language is a distinct translation.
	fr := NewTextTrack("hello", 0, 0)
	fr.SetMetadata(TrackMetaLanguage, "fr")
	at.AddTranslation(fr)
	if len(at.Translations) != 2 {
		t.Fatalf("distinct-language translation skipped: len = %d", len(at.Translations))
	}

	// Different text under the same language is also distinct.
	en2 := NewTextTrack("hi there", 0, 0)
	en2.SetMetadata(TrackMetaLanguage, "en")
	at.AddTranslation(en2)
	if len(at.Translations) != 3 {
		t.Fatalf("distinct-text translation skipped: len = %d", len(at.Translations))
	}
}

func TestAnnotatedTrackMerge(t *testing.T) {
	a := &AnnotatedTrack{ContentType: ContentMain, Content: wordTimedTrack(
		syllable("A", 0, 100, true),
	)}
	tr := NewTextTrack("translated", 0, 0)
	tr.SetMetadata(TrackMetaLanguage, "en")
	a.AddTranslation(tr)

	b := &AnnotatedTrack{ContentType: ContentMain, Content: wordTimedTrack(
		syllable("B", 100, 200, false),
	)}
	b.AddTranslation(tr)
	rom := NewTextTrack("romanized", 0, 0)
	b.AddRomanization(rom)

	a.Merge(b)

	if got := a.Content.DisplayText(); got != "A B" {
		t.Errorf("merged content = %q, want %q", got, "A B")
	}
	if len(a.Translations) != 1 {
		t.Errorf("merge duplicated translation: len = %d", len(a.Translations))
	}
	if len(a.Romanizations) != 1 {
		t.Errorf("merge lost romanization: len = %d", len(a.Romanizations))
	}
}

func TestDocumentAddRawMetadata(t *testing.T) {
	doc := &Document{}
	doc.AddRawMetadata("artists", "Artist A")
	doc.AddRawMetadata("artists", "Artist B")
	doc.AddRawMetadata("musicName", "Song")

	if got := len(doc.RawMetadata["artists"]); got != 2 {
		t.Errorf("artists values = %d, want 2", got)
	}
	if got := doc.RawMetadata["musicName"][0]; got != "Song" {
		t.Errorf("musicName = %q, want %q", got, "Song")
	}
}
