// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
)

// fence is the delimiter for code regions.
const fence = "```"

// DefaultLanguage is reported for code segments whose opener has no tag.
const DefaultLanguage = "text"

// =============================================================================
// SEGMENT TYPE
// =============================================================================

// SegmentKind discriminates Segment variants.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentCode
)

// String returns the kind name.
func (k SegmentKind) String() string {
	if k == SegmentCode {
		return "code"
	}
	return "text"
}

// Segment is a run of prose or a fenced code region.
// Segments are derived on every render and never stored.
type Segment struct {
	Kind     SegmentKind
	Content  string
	Language string

	// opener is the raw text between the opening fence and the code,
	// i.e. the tag as written plus the line break.
	opener string
}

// TextSegment creates a prose segment.
func TextSegment(content string) Segment {
	return Segment{Kind: SegmentText, Content: content}
}

// CodeSegment creates a code segment. An empty language becomes
// DefaultLanguage when displayed but is written back as an untagged fence.
func CodeSegment(content, language string) Segment {
	lang := language
	if lang == "" {
		lang = DefaultLanguage
	}
	return Segment{Kind: SegmentCode, Content: content, Language: lang, opener: language + "\n"}
}

// IsCode reports whether s is a code segment.
func (s Segment) IsCode() bool { return s.Kind == SegmentCode }

// =============================================================================
// SCANNER
// =============================================================================

// Split splits text into ordered segments.
//
// A fence opens with three backticks, an optional language tag (a run of
// non-space, non-backtick characters), and a line break, and closes at the
// next three backticks. Prose runs before, between, and after fences are
// emitted when non-empty. Text with no complete fence yields a single prose
// segment holding all of it. An opener without a matching closer is prose.
func Split(text string) []Segment {
	var segs []Segment
	s := scanner{src: text}

	textStart := 0
	for {
		open, ok := s.nextOpener()
		if !ok {
			break
		}
		if open.start > textStart {
			segs = append(segs, TextSegment(text[textStart:open.start]))
		}
		segs = append(segs, Segment{
			Kind:     SegmentCode,
			Content:  text[open.bodyStart:open.bodyEnd],
			Language: languageOr(open.lang),
			opener:   text[open.start+len(fence) : open.bodyStart],
		})
		textStart = open.bodyEnd + len(fence)
		s.pos = textStart
	}

	if textStart < len(text) || len(segs) == 0 {
		segs = append(segs, TextSegment(text[textStart:]))
	}
	return segs
}

// Join reassembles segments into the original text, reinserting fences
// around code segments.
func Join(segs []Segment) string {
	var sb strings.Builder
	for _, seg := range segs {
		if !seg.IsCode() {
			sb.WriteString(seg.Content)
			continue
		}
		sb.WriteString(fence)
		if seg.opener != "" {
			sb.WriteString(seg.opener)
		} else {
			sb.WriteString(seg.Language)
			sb.WriteByte('\n')
		}
		sb.WriteString(seg.Content)
		sb.WriteString(fence)
	}
	return sb.String()
}

type fenceMatch struct {
	start     int // index of the opening backticks
	lang      string
	bodyStart int // first byte of code
	bodyEnd   int // index of the closing backticks
}

type scanner struct {
	src string
	pos int
}

// nextOpener finds the next complete fence at or after pos.
func (s *scanner) nextOpener() (fenceMatch, bool) {
	for s.pos < len(s.src) {
		idx := strings.Index(s.src[s.pos:], fence)
		if idx < 0 {
			return fenceMatch{}, false
		}
		start := s.pos + idx

		i := start + len(fence)
		langStart := i
		for i < len(s.src) && !isTagTerminator(s.src[i]) {
			i++
		}
		lang := s.src[langStart:i]

		bodyStart := -1
		switch {
		case strings.HasPrefix(s.src[i:], "\r\n"):
			bodyStart = i + 2
		case strings.HasPrefix(s.src[i:], "\n"):
			bodyStart = i + 1
		}
		if bodyStart < 0 {
			// Not an opener; keep looking past this backtick.
			s.pos = start + 1
			continue
		}

		end := strings.Index(s.src[bodyStart:], fence)
		if end < 0 {
			return fenceMatch{}, false
		}
		return fenceMatch{
			start:     start,
			lang:      lang,
			bodyStart: bodyStart,
			bodyEnd:   bodyStart + end,
		}, true
	}
	return fenceMatch{}, false
}

func isTagTerminator(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '`':
		return true
	}
	return false
}

func languageOr(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}
