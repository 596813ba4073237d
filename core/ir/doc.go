// Package ir provides the canonical lyric model every format parser and
// generator reads or writes.
//
// # Core Types
//
// The model is a strict ownership tree:
//
//   - Document: top-level result of a parse, owns all lines
//   - Line: one timed lyric line with agent, song part, and external key
//   - AnnotatedTrack: Main or Background content plus its auxiliary tracks
//   - Track: ordered words with a small metadata map (language, scheme)
//   - Word: ordered syllables plus optional ruby annotations
//   - Syllable: normalized text with absolute millisecond timing
//
// Agents are referenced by id from lines and resolved through the document's
// AgentStore, never embedded by value.
//
// # Timing Granularity
//
// A track is word-timed when it carries more than one syllable and at least
// one syllable has a positive duration. Everything else is line-timed: the
// whole line's text is one syllable spanning the line's own start/end.
//
// # Content Addressing
//
// Documents record a BLAKE3 hash of the source text they were parsed from,
// used for change detection and cache keying.
package ir
