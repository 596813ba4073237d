// Package encoding provides shared text encoding and escaping utilities.
package encoding

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// EscapeXML escapes special characters for XML content.
// Uses the standard library's xml.EscapeText for proper escaping.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// EscapeXMLText escapes only the basic XML entities for text content.
// This is a lighter-weight alternative to EscapeXML.
func EscapeXMLText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeXMLAttr escapes text for use in XML attributes.
// Includes quote escaping in addition to basic XML entities.
func EscapeXMLAttr(s string) string {
	s = EscapeXMLText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// NormalizeWhitespace collapses runs of whitespace to single spaces and
// trims the ends. Returns "" for whitespace-only input.
func NormalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}

// StripOuterParens removes leading/trailing parentheses (ASCII or fullwidth)
// from the ends of s, re-trimming surrounding whitespace. Unbalanced
// parentheses are stripped independently.
func StripOuterParens(s string) string {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimLeft(trimmed, "(（")
	trimmed = strings.TrimRight(trimmed, ")）")
	return strings.TrimSpace(trimmed)
}
