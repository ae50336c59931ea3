// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// =============================================================================
// PART TYPE
// =============================================================================

// PartKind discriminates the variants of Part.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one element of composite content.
// Exactly one of Text or Image is meaningful, selected by Kind.
type Part struct {
	Kind PartKind `json:"type"`

	// Text holds the fragment for PartText.
	Text string `json:"text,omitempty"`

	// Image holds self-describing inline data (a data URL) for PartImage.
	Image string `json:"image,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// ImagePart creates an image part from inline-encoded data.
func ImagePart(data string) Part {
	return Part{Kind: PartImage, Image: data}
}

// IsText reports whether the part is a text part.
func (p Part) IsText() bool { return p.Kind == PartText }

// IsImage reports whether the part is an image part.
func (p Part) IsImage() bool { return p.Kind == PartImage }

// =============================================================================
// CONTENT TYPE
// =============================================================================

// Content is the body of a message: either TextContent (a plain string)
// or CompositeContent (an ordered list of parts).
//
// The zero value is empty TextContent. Construct with TextContent or
// NewContent; NewContent applies the normalization rule that a lone text
// part collapses to TextContent.
type Content struct {
	// Text is the plain string when the content is not composite.
	Text string

	// Parts is non-empty only for composite content.
	Parts []Part
}

// TextContent creates plain text content.
func TextContent(text string) Content {
	return Content{Text: text}
}

// NewContent creates content from parts.
// A single text part, or no parts at all, yields TextContent.
func NewContent(parts ...Part) Content {
	switch {
	case len(parts) == 0:
		return Content{}
	case len(parts) == 1 && parts[0].IsText():
		return Content{Text: parts[0].Text}
	}
	cp := make([]Part, len(parts))
	copy(cp, parts)
	return Content{Parts: cp}
}

// IsComposite reports whether the content is CompositeContent.
func (c Content) IsComposite() bool {
	return len(c.Parts) > 0
}

// PlainText returns the text of the content.
// For composite content the text parts are joined with newlines and images
// are skipped.
func (c Content) PlainText() string {
	if !c.IsComposite() {
		return c.Text
	}
	var texts []string
	for _, p := range c.Parts {
		if p.IsText() {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ImageCount returns the number of image parts.
func (c Content) ImageCount() int {
	n := 0
	for _, p := range c.Parts {
		if p.IsImage() {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the content carries nothing.
func (c Content) IsEmpty() bool {
	return !c.IsComposite() && c.Text == ""
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	if !c.IsComposite() {
		return Content{Text: c.Text}
	}
	cp := make([]Part, len(c.Parts))
	copy(cp, c.Parts)
	return Content{Parts: cp}
}

// MarshalJSON encodes TextContent as a JSON string and CompositeContent as
// an array of {type, text?, image?} objects.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsComposite() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of parts and
// normalizes the result.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "decode text content")
		}
		*c = TextContent(s)
		return nil
	}

	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return errors.Wrap(err, "decode composite content")
	}
	for i, p := range parts {
		if p.Kind != PartText && p.Kind != PartImage {
			return errors.Errorf("decode composite content: part %d has unknown type %q", i, p.Kind)
		}
	}
	*c = NewContent(parts...)
	return nil
}
