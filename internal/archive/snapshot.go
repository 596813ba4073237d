// Package archive exports and imports parsed documents as xz-compressed
// JSON snapshots. A snapshot carries a manifest identifying the export
// plus the full canonical document, so a conversion result can be stored
// and reloaded without re-parsing the source.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/lyricore/lyricore/core/errors"
	"github.com/lyricore/lyricore/core/ir"
)

// ManifestVersion is written into every snapshot.
const ManifestVersion = "1"

// Extension is the conventional snapshot file suffix.
const Extension = ".lyr.xz"

// Manifest identifies one snapshot.
type Manifest struct {
	Version      string `json:"version"`
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	SourceFormat string `json:"source_format,omitempty"`
	SourceHash   string `json:"source_hash,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// envelope is the serialized snapshot layout.
type envelope struct {
	Manifest Manifest     `json:"manifest"`
	Document *ir.Document `json:"document"`
}

// Export writes a snapshot of doc to w and returns its manifest. The id
// is freshly generated per export.
func Export(w io.Writer, doc *ir.Document, title, sourceFormat string) (*Manifest, error) {
	if doc == nil {
		return nil, &errors.ValidationError{Field: "document", Message: "nil document"}
	}
	m := Manifest{
		Version:      ManifestVersion,
		ID:           uuid.NewString(),
		Title:        title,
		SourceFormat: sourceFormat,
		SourceHash:   doc.SourceHash,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	xw, err := xz.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	enc := json.NewEncoder(xw)
	if err := enc.Encode(envelope{Manifest: m, Document: doc}); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := xw.Close(); err != nil {
		return nil, fmt.Errorf("flushing compressor: %w", err)
	}
	return &m, nil
}

// ExportFile writes a snapshot to path.
func ExportFile(path string, doc *ir.Document, title, sourceFormat string) (*Manifest, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &errors.IOError{Operation: "create", Path: path, Err: err}
	}
	defer f.Close()

	m, err := Export(f, doc, title, sourceFormat)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, &errors.IOError{Operation: "write", Path: path, Err: err}
	}
	return m, nil
}

// Import reads one snapshot from r.
func Import(r io.Reader) (*ir.Document, *Manifest, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, nil, errors.NewParse("snapshot", "not an xz stream: "+err.Error())
	}
	var env envelope
	if err := json.NewDecoder(xr).Decode(&env); err != nil {
		return nil, nil, errors.NewParse("snapshot", "malformed payload: "+err.Error())
	}
	if env.Document == nil {
		return nil, nil, errors.NewParse("snapshot", "snapshot carries no document")
	}
	if env.Manifest.Version != ManifestVersion {
		return nil, nil, errors.NewParse("snapshot",
			fmt.Sprintf("unsupported snapshot version %q", env.Manifest.Version))
	}
	return env.Document, &env.Manifest, nil
}

// ImportFile reads one snapshot from path.
func ImportFile(path string) (*ir.Document, *Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &errors.IOError{Operation: "open", Path: path, Err: err}
	}
	defer f.Close()
	return Import(f)
}
