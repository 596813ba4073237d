// Command lyricore converts timed lyric documents between representations
// through one canonical model. It also ships utilities for format
// detection, document inspection, snapshot archives, and a live feed of
// converted documents.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lyricore/lyricore/core/ir"
	"github.com/lyricore/lyricore/core/metadata"
	"github.com/lyricore/lyricore/core/xmlutil"
	"github.com/lyricore/lyricore/internal/archive"
	"github.com/lyricore/lyricore/internal/cache"
	"github.com/lyricore/lyricore/internal/feed"
	"github.com/lyricore/lyricore/internal/formats/ttml"
	"github.com/lyricore/lyricore/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for lyricore.
var CLI struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log verbosity"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log output format"`

	Convert ConvertCmd `cmd:"" help:"Convert a lyric document through the canonical model"`
	Detect  DetectCmd  `cmd:"" help:"Detect the format of a file"`
	Inspect InspectCmd `cmd:"" help:"Parse a document and print its canonical structure"`
	Archive ArchiveCmd `cmd:"" help:"Snapshot archive operations"`
	Feed    FeedCmd    `cmd:"" help:"Live document feed"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ConvertCmd parses input and regenerates it with the requested options.
type ConvertCmd struct {
	Input  string `arg:"" help:"Input file" type:"existingfile"`
	Output string `short:"o" help:"Output file (default stdout)"`

	Timing    string `default:"" enum:",word,line" help:"Force output timing mode"`
	Apple     bool   `default:"true" negatable:"" help:"Apple format rules (head-section auxiliary tracks)"`
	Pretty    bool   `help:"Pretty-print the output"`
	Split     bool   `help:"Auto word splitting of long syllables"`
	Check     bool   `help:"Validate well-formedness before parsing"`
	CachePath string `name:"cache" help:"SQLite parse cache path"`

	MainLang        string `name:"main-lang" help:"Default main language tag"`
	TranslationLang string `name:"translation-lang" help:"Default translation language tag"`
	RomanLang       string `name:"roman-lang" help:"Default romanization language tag"`
}

func (c *ConvertCmd) Run() error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if c.Check {
		if err := xmlutil.Validate(data); err != nil {
			return fmt.Errorf("input is not well-formed: %w", err)
		}
	}

	doc, lineTimed, err := c.parse(string(data))
	if err != nil {
		return err
	}
	logging.ParseWarnings(ttml.FormatName, doc.Warnings)

	genOpts := ttml.DefaultGenerateOptions()
	genOpts.AppleFormatRules = c.Apple
	genOpts.Format = c.Pretty
	genOpts.AutoWordSplitting = c.Split
	switch c.Timing {
	case "line":
		genOpts.TimingMode = ttml.TimingLine
	case "word":
		genOpts.TimingMode = ttml.TimingWord
	default:
		if lineTimed {
			genOpts.TimingMode = ttml.TimingLine
		}
	}

	out, err := ttml.GenerateDocument(doc, genOpts)
	if err != nil {
		return fmt.Errorf("generating output: %w", err)
	}

	if c.Output == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(c.Output, []byte(out), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	logging.Info("converted", "input", c.Input, "output", c.Output, "lines", len(doc.Lines))
	return nil
}

// parse runs the parser, going through the document cache when one is
// configured. LineTimed is re-derived from cached documents via a fresh
// parse-option check, so the cache only ever skips work, never changes
// results.
func (c *ConvertCmd) parse(content string) (*ir.Document, bool, error) {
	opts := &ttml.ParseOptions{
		DefaultMainLanguage:         c.MainLang,
		DefaultTranslationLanguage:  c.TranslationLang,
		DefaultRomanizationLanguage: c.RomanLang,
	}

	if c.CachePath == "" {
		res, err := ttml.Parse(content, opts)
		if err != nil {
			return nil, false, err
		}
		return res.Document, res.LineTimed, nil
	}

	store, err := cache.Open(c.CachePath)
	if err != nil {
		return nil, false, err
	}
	defer store.Close()

	ctx := context.Background()
	hash := ir.HashString(content)
	if doc, ok, err := store.Get(ctx, hash); err == nil && ok {
		logging.Debug("cache hit", "hash", hash)
		return doc, isLineTimed(doc), nil
	}

	res, err := ttml.Parse(content, opts)
	if err != nil {
		return nil, false, err
	}
	if err := store.Put(ctx, res.Document); err != nil {
		logging.Warn("cache write failed", "error", err)
	}
	return res.Document, res.LineTimed, nil
}

// isLineTimed reports whether no content track of the document carries
// word timing.
func isLineTimed(doc *ir.Document) bool {
	for i := range doc.Lines {
		for j := range doc.Lines[i].Tracks {
			if doc.Lines[i].Tracks[j].Content.IsTimed() {
				return false
			}
		}
	}
	return true
}

// DetectCmd reports whether a file is recognized lyric markup.
type DetectCmd struct {
	Path string `arg:"" help:"File to examine" type:"existingfile"`
}

func (c *DetectCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	res := ttml.Detect(data)
	if res.Detected {
		fmt.Printf("%s: %s (%s)\n", c.Path, res.Format, res.Reason)
		return nil
	}
	fmt.Printf("%s: not recognized (%s)\n", c.Path, res.Reason)
	return nil
}

// InspectCmd prints the canonical structure of a parsed document.
type InspectCmd struct {
	Path string `arg:"" help:"File to inspect" type:"existingfile"`
	Full bool   `help:"Print the full document JSON instead of a summary"`
}

func (c *InspectCmd) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	res, err := ttml.Parse(string(data), nil)
	if err != nil {
		return err
	}
	doc := res.Document

	if c.Full {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	store := metadata.FromRaw(doc.RawMetadata)
	summary := map[string]any{
		"lines":      len(doc.Lines),
		"agents":     doc.Agents.Len(),
		"line_timed": res.LineTimed,
		"formatted":  res.FormattedInput,
		"hash":       doc.SourceHash,
		"metadata":   store.SerializableMap(),
		"warnings":   doc.Warnings,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// ArchiveCmd groups snapshot operations.
type ArchiveCmd struct {
	Export ArchiveExportCmd `cmd:"" help:"Export a parsed document as a snapshot"`
	Import ArchiveImportCmd `cmd:"" help:"Regenerate markup from a snapshot"`
}

type ArchiveExportCmd struct {
	Input  string `arg:"" help:"Lyric markup file" type:"existingfile"`
	Output string `short:"o" help:"Snapshot path (default input plus snapshot extension)"`
	Title  string `help:"Title recorded in the manifest"`
}

func (c *ArchiveExportCmd) Run() error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	res, err := ttml.Parse(string(data), nil)
	if err != nil {
		return err
	}
	logging.ParseWarnings(ttml.FormatName, res.Document.Warnings)

	out := c.Output
	if out == "" {
		out = c.Input + archive.Extension
	}
	title := c.Title
	if title == "" {
		store := metadata.FromRaw(res.Document.RawMetadata)
		title, _ = store.Get(metadata.KeyTitle)
	}
	m, err := archive.ExportFile(out, res.Document, title, ttml.FormatName)
	if err != nil {
		return err
	}
	fmt.Printf("exported snapshot %s to %s\n", m.ID, out)
	return nil
}

type ArchiveImportCmd struct {
	Input  string `arg:"" help:"Snapshot file" type:"existingfile"`
	Output string `short:"o" help:"Markup output (default stdout)"`
	Pretty bool   `help:"Pretty-print the output"`
}

func (c *ArchiveImportCmd) Run() error {
	doc, m, err := archive.ImportFile(c.Input)
	if err != nil {
		return err
	}
	logging.Info("imported snapshot", "id", m.ID, "created_at", m.CreatedAt, "lines", len(doc.Lines))

	genOpts := ttml.DefaultGenerateOptions()
	genOpts.Format = c.Pretty
	if isLineTimed(doc) {
		genOpts.TimingMode = ttml.TimingLine
	}
	out, err := ttml.GenerateDocument(doc, genOpts)
	if err != nil {
		return err
	}
	if c.Output == "" {
		fmt.Println(out)
		return nil
	}
	return os.WriteFile(c.Output, []byte(out), 0644)
}

// FeedCmd groups feed operations.
type FeedCmd struct {
	Serve FeedServeCmd `cmd:"" help:"Serve a websocket feed of converted documents"`
}

// FeedServeCmd runs an HTTP server: subscribers connect on /feed, and
// documents POSTed to /publish are parsed and fanned out.
type FeedServeCmd struct {
	Addr string `default:":8735" help:"Listen address"`
}

func (c *FeedServeCmd) Run() error {
	hub := feed.NewHub()
	go hub.Run()
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.Handle("/feed", hub.Handler())
	mux.HandleFunc("/publish", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		source := r.URL.Query().Get("source")
		res, err := ttml.Parse(string(body), nil)
		if err != nil {
			hub.PublishError(source, err.Error())
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		hub.PublishDocument(source, res.Document)
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, "published %d lines to %d subscribers\n", len(res.Document.Lines), hub.Subscribers())
	})

	srv := &http.Server{Addr: c.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logging.Info("feed server listening", "addr", c.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("lyricore version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("lyricore"),
		kong.Description("Timed lyric conversion through one canonical model"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	level := logging.LevelInfo
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.Init(level, format)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
