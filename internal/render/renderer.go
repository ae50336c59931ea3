// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatbot-tui/internal/attach"
	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
)

// DefaultWidth is used when the caller passes a non-positive width.
const DefaultWidth = 80

// DefaultCacheSize is the number of rendered messages kept by default.
const DefaultCacheSize = 256

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Renderer.
type Options struct {
	// MarkdownStyle is a glamour standard style ("dark", "light", "notty",
	// "ascii", ...) or "auto" to detect from the terminal.
	MarkdownStyle string

	// CodeStyle is a chroma style name such as "monokai".
	CodeStyle string

	// Plain disables all styling; content is emitted as written.
	Plain bool

	// ShowLineNumbers prefixes code lines with their number.
	ShowLineNumbers bool

	// CacheSize bounds the memo of rendered messages.
	CacheSize int
}

// DefaultOptions returns the options used by the TUI.
func DefaultOptions() Options {
	return Options{
		MarkdownStyle:   "auto",
		CodeStyle:       "monokai",
		ShowLineNumbers: true,
		CacheSize:       DefaultCacheSize,
	}
}

// =============================================================================
// RENDERER
// =============================================================================

type cacheKey struct {
	id    string
	width int
}

// Renderer formats messages for the terminal.
// Output for a given message ID and width is memoized; message content is
// immutable once stored, so entries never go stale.
type Renderer struct {
	opts  Options
	cache *lru.Cache[cacheKey, string]

	mu       sync.Mutex
	markdown map[int]*glamour.TermRenderer
}

// NewRenderer creates a renderer.
func NewRenderer(opts Options) *Renderer {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CodeStyle == "" {
		opts.CodeStyle = "monokai"
	}
	if opts.MarkdownStyle == "" {
		opts.MarkdownStyle = "auto"
	}
	cache, err := lru.New[cacheKey, string](opts.CacheSize)
	if err != nil {
		// Only reachable with a non-positive size, which is excluded above.
		panic(err)
	}
	return &Renderer{
		opts:     opts,
		cache:    cache,
		markdown: make(map[int]*glamour.TermRenderer),
	}
}

// Message renders one message body at the given width.
//
// Assistant text is segmented into prose and code. Composite content is
// rendered part by part as written. User text is shown verbatim.
func (r *Renderer) Message(msg model.Message, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	key := cacheKey{id: msg.ID, width: width}
	if msg.ID != "" {
		if out, ok := r.cache.Get(key); ok {
			return out
		}
	}

	var out string
	switch {
	case msg.Content.IsComposite():
		out = r.parts(msg.Content.Parts, width)
	case msg.Role == model.RoleAssistant:
		out = r.Text(msg.Content.Text, width)
	default:
		out = r.verbatim(msg.Content.Text, width)
	}

	if msg.ID != "" {
		r.cache.Add(key, out)
	}
	return out
}

// Text segments assistant text and renders each segment.
func (r *Renderer) Text(text string, width int) string {
	segs := Split(text)
	if r.opts.Plain {
		return Join(segs)
	}

	rendered := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg.IsCode() {
			rendered = append(rendered, r.Code(seg, width))
			continue
		}
		if strings.TrimSpace(seg.Content) == "" {
			continue
		}
		rendered = append(rendered, r.prose(seg.Content, width))
	}
	return strings.Join(rendered, "\n")
}

// Purge drops every memoized entry.
func (r *Renderer) Purge() {
	r.cache.Purge()
}

// CacheLen returns the number of memoized entries.
func (r *Renderer) CacheLen() int {
	return r.cache.Len()
}

func (r *Renderer) parts(parts []model.Part, width int) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			out = append(out, r.imageLabel(p.Image))
			continue
		}
		out = append(out, r.verbatim(p.Text, width))
	}
	return strings.Join(out, "\n")
}

func (r *Renderer) verbatim(text string, width int) string {
	if r.opts.Plain {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}

func (r *Renderer) imageLabel(dataURL string) string {
	mime := attach.MediaType(dataURL)
	if mime == "" {
		mime = "image"
	}
	label := "[" + mime
	if _, payload, ok := strings.Cut(dataURL, ";base64,"); ok {
		label += ", " + humanize.Bytes(uint64(len(payload)*3/4))
	}
	label += "]"

	if r.opts.Plain {
		return label
	}
	return lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Italic(true).
		Render(label)
}

// prose renders markdown prose with glamour, falling back to the raw text.
func (r *Renderer) prose(text string, width int) string {
	tr, err := r.markdownFor(width)
	if err != nil {
		log.Debug().Err(err).Int("width", width).Msg("markdown renderer unavailable")
		return r.verbatim(text, width)
	}
	out, err := tr.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("markdown render failed")
		return r.verbatim(text, width)
	}
	return strings.Trim(out, "\n")
}

// markdownFor returns a glamour renderer for width, creating it on first use.
// PERFORMANCE: glamour renderers are expensive to build, so one is kept per width
func (r *Renderer) markdownFor(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tr, ok := r.markdown[width]; ok {
		return tr, nil
	}

	styleOpt := glamour.WithStandardStyle(r.opts.MarkdownStyle)
	if r.opts.MarkdownStyle == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	tr, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	r.markdown[width] = tr
	return tr, nil
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// Code renders a code segment with syntax highlighting inside a bordered box.
// USABILITY: language badge and line numbers make long replies navigable
func (r *Renderer) Code(seg Segment, width int) string {
	code := strings.TrimRight(seg.Content, "\r\n")
	if r.opts.Plain {
		return fence + seg.Language + "\n" + code + "\n" + fence
	}

	lines := strings.Split(r.highlight(code, seg.Language), "\n")
	if r.opts.ShowLineNumbers {
		lineNum := lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Width(4).
			Align(lipgloss.Right).
			MarginRight(1)
		for i, line := range lines {
			lines[i] = lineNum.Render(strconv.Itoa(i+1)) + line
		}
	}

	badge := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Background(styles.OverlayDim).
		Padding(0, 1).
		Bold(true).
		Render(seg.Language)

	maxWidth := width - 4
	if maxWidth < 20 {
		maxWidth = 20
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(0, 1).
		MaxWidth(maxWidth).
		Render(badge + "\n" + strings.Join(lines, "\n"))
}

// highlight applies chroma highlighting, returning code unchanged on failure.
func (r *Renderer) highlight(code, language string) string {
	var lexer chroma.Lexer
	if language != DefaultLanguage {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(r.opts.CodeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}
