// Package xmlutil provides well-formedness checking, pretty-printing, and
// light DOM queries over lyric markup. The streaming parser in
// internal/formats/ttml never builds a DOM; these helpers serve the CLI's
// check/inspect paths and format sniffing.
package xmlutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/lyricore/lyricore/core/encoding"
	"github.com/lyricore/lyricore/core/errors"
)

// Document wraps a parsed DOM.
type Document struct {
	root *xmlquery.Node
}

// Parse builds a DOM from markup data.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &errors.ParseError{Format: "xml", Message: err.Error(), Err: err}
	}
	return &Document{root: root}, nil
}

// Validate checks well-formedness without building a DOM. Entity
// expansion is disabled, so external-entity tricks cannot reach the
// filesystem.
func Validate(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &errors.ValidationError{Field: "document", Message: err.Error(), Err: err}
		}
	}
}

// RootName returns the local name of the document's root element, or "".
func (d *Document) RootName() string {
	for n := d.root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n.Data
		}
	}
	return ""
}

// First returns the first node matching an XPath expression, or nil.
func (d *Document) First(expr string) (*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	n, err := xmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	return n, nil
}

// All returns every node matching an XPath expression.
func (d *Document) All(expr string) ([]*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	return nodes, nil
}

// Format pretty-prints markup with the given indent string, defaulting to
// two spaces.
func Format(data []byte, indent string) ([]byte, error) {
	if indent == "" {
		indent = "  "
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	formatNode(&buf, doc.root, 0, indent)
	return buf.Bytes(), nil
}

func formatNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			formatNode(w, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		for _, attr := range n.Attr {
			fmt.Fprintf(w, " %s=%q", attr.Name.Local, attr.Value)
		}
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		writeIndent(w, depth, indent)
		w.WriteString("<")
		w.WriteString(qualifiedName(n))
		for _, attr := range n.Attr {
			w.WriteString(" ")
			if attr.Name.Space != "" {
				w.WriteString(attr.Name.Space)
				w.WriteString(":")
			}
			w.WriteString(attr.Name.Local)
			w.WriteString(`="`)
			w.WriteString(encoding.EscapeXMLAttr(attr.Value))
			w.WriteString(`"`)
		}

		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}

		hasElementChildren := false
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				hasElementChildren = true
				break
			}
		}

		w.WriteString(">")
		if hasElementChildren {
			w.WriteString("\n")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case xmlquery.ElementNode:
				formatNode(w, child, depth+1, indent)
			case xmlquery.TextNode:
				if text := strings.TrimSpace(child.Data); text != "" {
					if hasElementChildren {
						writeIndent(w, depth+1, indent)
					}
					w.WriteString(encoding.EscapeXMLText(text))
					if hasElementChildren {
						w.WriteString("\n")
					}
				}
			}
		}
		if hasElementChildren {
			writeIndent(w, depth, indent)
		}
		w.WriteString("</")
		w.WriteString(qualifiedName(n))
		w.WriteString(">\n")

	case xmlquery.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(encoding.EscapeXMLText(text))
		}

	case xmlquery.CommentNode:
		writeIndent(w, depth, indent)
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->\n")
	}
}

func qualifiedName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func writeIndent(w *bytes.Buffer, depth int, indent string) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}
