package ttml

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lyricore/lyricore/core/encoding"
	"github.com/lyricore/lyricore/core/ir"
	"github.com/lyricore/lyricore/core/metadata"
)

// Namespace URLs written on the root element.
const (
	nsTT     = "http://www.w3.org/ns/ttml"
	nsTTM    = "http://www.w3.org/ns/ttml#metadata"
	nsITunes = "http://music.apple.com/lyric-ttml-internal"
	nsAMLL   = "http://www.example.com/ns/amll"
)

// Generate renders lines plus metadata into markup text. A nil opts means
// DefaultGenerateOptions.
func Generate(lines []ir.Line, store *metadata.Store, agents *ir.AgentStore, opts *GenerateOptions) (string, error) {
	if opts == nil {
		opts = DefaultGenerateOptions()
	}
	if store == nil {
		store = metadata.NewStore()
	}
	if agents == nil {
		agents = ir.NewAgentStore()
	}

	g := &generator{
		opts:     opts,
		store:    store,
		lines:    lines,
		wordMode: opts.TimingMode != TimingLine,
	}
	g.w.pretty = opts.Format
	g.agents = headAgents(lines, agents)
	g.keys = make([]string, len(lines))
	for i := range lines {
		g.keys[i] = "L" + strconv.Itoa(i+1)
	}
	g.collectAuxGroups()

	g.writeRoot()
	g.writeHead()
	g.writeBody()
	g.w.line("</tt>")

	out := g.w.sb.String()
	if !opts.Format {
		out = strings.TrimSuffix(out, "\n")
	}
	return out, nil
}

// GenerateDocument renders a parsed document, normalizing its raw
// metadata through the canonical store. A document without registered
// agents falls back to agents derived from its raw "agent" entries.
func GenerateDocument(doc *ir.Document, opts *GenerateOptions) (string, error) {
	store := metadata.FromRaw(doc.RawMetadata)
	agents := doc.Agents
	if agents == nil || len(agents.Agents) == 0 {
		agents = store.AgentStore()
	}
	return Generate(doc.Lines, store, agents, opts)
}

type generator struct {
	w        xmlWriter
	opts     *GenerateOptions
	store    *metadata.Store
	lines    []ir.Line
	agents   []*ir.Agent
	keys     []string
	wordMode bool

	translations    []auxGroup
	romanizations   []auxGroup
	amllMetas       []amllMeta
	hasITunesBlock  bool
	hasAMLLMetadata bool
}

// xmlWriter emits markup either compact or pretty-printed with two-space
// indentation.
type xmlWriter struct {
	sb     strings.Builder
	pretty bool
	depth  int
}

func (w *xmlWriter) indent() {
	if w.pretty {
		for i := 0; i < w.depth; i++ {
			w.sb.WriteString("  ")
		}
	}
}

func (w *xmlWriter) newline() {
	if w.pretty {
		w.sb.WriteByte('\n')
	}
}

// line writes one complete element or tag on its own output line.
func (w *xmlWriter) line(s string) {
	w.indent()
	w.sb.WriteString(s)
	w.newline()
}

// open writes an opening tag and indents its children.
func (w *xmlWriter) open(s string) {
	w.line(s)
	w.depth++
}

// close dedents and writes a closing tag.
func (w *xmlWriter) close(s string) {
	w.depth--
	w.line(s)
}

func (g *generator) writeRoot() {
	var sb strings.Builder
	sb.WriteString(`<tt xmlns="` + nsTT + `" xmlns:ttm="` + nsTTM + `" xmlns:itunes="` + nsITunes + `"`)
	if g.hasAMLLMetadata {
		sb.WriteString(` xmlns:amll="` + nsAMLL + `"`)
	}
	timing := "Word"
	if !g.wordMode {
		timing = "Line"
	}
	sb.WriteString(` itunes:timing="` + timing + `"`)
	if lang := g.mainLanguage(); lang != "" {
		sb.WriteString(` xml:lang="` + encoding.EscapeXMLAttr(lang) + `"`)
	}
	sb.WriteString(">")
	g.w.open(sb.String())
}

func (g *generator) mainLanguage() string {
	if g.opts.MainLanguage != "" {
		return g.opts.MainLanguage
	}
	lang, _ := g.store.Get(metadata.KeyLanguage)
	return lang
}

// headAgents builds the declared agent list: every registered agent plus
// a synthesized one for every id the body references, sorted by id. A
// document with lines always declares at least the default "v1".
func headAgents(lines []ir.Line, store *ir.AgentStore) []*ir.Agent {
	byID := make(map[string]*ir.Agent)
	var out []*ir.Agent
	add := func(a *ir.Agent) {
		if byID[a.ID] == nil {
			byID[a.ID] = a
			out = append(out, a)
		}
	}
	for _, a := range store.Agents {
		add(a)
	}
	for i := range lines {
		id := lines[i].Agent
		if id == "" {
			id = "v1"
		}
		if byID[id] == nil {
			typ := ir.AgentPerson
			if id == ir.ChorusAgentID {
				typ = ir.AgentGroup
			}
			add(&ir.Agent{ID: id, Type: typ})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, iOK := agentOrdinal(out[i].ID)
		nj, jOK := agentOrdinal(out[j].ID)
		if iOK != jOK {
			return iOK
		}
		if iOK {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func agentOrdinal(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "v")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

// agentIDFor returns the ttm:agent attribute for a line.
func agentIDFor(line *ir.Line) string {
	if line.Agent != "" {
		return line.Agent
	}
	return "v1"
}
