// Package base provides shared helpers for format handlers. Detection
// operates on content, not file names: a format claims input when its
// characteristic markers are present and its validator accepts the data.
package base

import (
	"bytes"
	"fmt"
)

// DetectConfig describes how one format recognizes its input.
type DetectConfig struct {
	// FormatName is the name reported in the result.
	FormatName string

	// ContentMarkers must all be present in the data.
	ContentMarkers []string

	// CustomValidator, when set, confirms a marker match. It returns
	// whether the data is accepted and a human-readable reason.
	CustomValidator func(data []byte) (bool, string)
}

// DetectResult is the outcome of one detection attempt.
type DetectResult struct {
	Detected bool
	Format   string
	Reason   string
}

// Detect checks data against a format's markers and validator.
func Detect(data []byte, cfg DetectConfig) DetectResult {
	for _, m := range cfg.ContentMarkers {
		if !bytes.Contains(data, []byte(m)) {
			return DetectResult{
				Reason: fmt.Sprintf("missing %s marker %q", cfg.FormatName, m),
			}
		}
	}
	if cfg.CustomValidator != nil {
		ok, reason := cfg.CustomValidator(data)
		if !ok {
			return DetectResult{Reason: reason}
		}
		return DetectResult{Detected: true, Format: cfg.FormatName, Reason: reason}
	}
	return DetectResult{
		Detected: true,
		Format:   cfg.FormatName,
		Reason:   fmt.Sprintf("%s markers detected", cfg.FormatName),
	}
}
