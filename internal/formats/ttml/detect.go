package ttml

import (
	"github.com/lyricore/lyricore/core/xmlutil"
	"github.com/lyricore/lyricore/internal/formats/base"
)

// FormatName identifies this format in detection results.
const FormatName = "ttml"

// Detect reports whether data looks like timed-text lyric markup: a
// well-formed document rooted at a tt element.
func Detect(data []byte) base.DetectResult {
	return base.Detect(data, base.DetectConfig{
		FormatName:     FormatName,
		ContentMarkers: []string{"<tt"},
		CustomValidator: func(data []byte) (bool, string) {
			doc, err := xmlutil.Parse(data)
			if err != nil {
				return false, "markup does not parse: " + err.Error()
			}
			if doc.RootName() != "tt" {
				return false, "root element is not tt"
			}
			return true, "tt root element detected"
		},
	})
}
