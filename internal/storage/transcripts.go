// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatbot-tui/internal/attach"
	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// DefaultMaxTranscripts is the retention limit when none is configured.
const DefaultMaxTranscripts = 100

const (
	fileExt      = ".json"
	titleLen     = 50
	previewLen   = 80
	untitledName = "New conversation"
)

// ErrTranscriptNotFound is returned when a transcript does not exist.
var ErrTranscriptNotFound = errors.New("transcript not found")

// ErrInvalidID is returned for IDs that cannot name a transcript file.
var ErrInvalidID = errors.New("invalid transcript id")

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is a saved copy of a conversation.
type Transcript struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// NewTranscript copies messages into a new, unsaved transcript.
func NewTranscript(modelID string, messages []model.Message) *Transcript {
	msgs := make([]model.Message, len(messages))
	for i, m := range messages {
		msgs[i] = m.Clone()
	}
	return &Transcript{Model: modelID, Messages: msgs}
}

// Meta is the listing view of a transcript.
type Meta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// Meta returns the listing view.
func (t *Transcript) Meta() Meta {
	return Meta{
		ID:           t.ID,
		Title:        t.Title,
		Model:        t.Model,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		MessageCount: len(t.Messages),
		Preview:      t.Preview(),
	}
}

// Preview returns the first user turn on one line.
func (t *Transcript) Preview() string {
	for _, m := range t.Messages {
		if m.Role == model.RoleUser {
			return oneLine(m.Preview(previewLen))
		}
	}
	return ""
}

func (t *Transcript) generateTitle() string {
	for _, m := range t.Messages {
		if m.Role != model.RoleUser {
			continue
		}
		if text := strings.TrimSpace(m.Content.PlainText()); text != "" {
			return util.TruncateRunes(oneLine(text), titleLen)
		}
	}
	return untitledName
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

// =============================================================================
// EXPORT
// =============================================================================

// JSON returns the transcript as indented JSON.
func (t *Transcript) JSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Markdown renders the transcript as Markdown. Images are listed by media
// type and size rather than inlined.
func (t *Transcript) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# " + t.Title + "\n\n")
	if t.Model != "" {
		sb.WriteString("Model: " + t.Model + "\n")
	}
	sb.WriteString("Created: " + t.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, m := range t.Messages {
		fmt.Fprintf(&sb, "**%s** (%s):\n\n", m.Role.DisplayName(), m.Timestamp.Format("15:04"))
		if !m.Content.IsComposite() {
			sb.WriteString(m.Content.Text)
			sb.WriteString("\n\n---\n\n")
			continue
		}
		for _, p := range m.Content.Parts {
			if p.IsText() {
				sb.WriteString(p.Text + "\n\n")
				continue
			}
			sb.WriteString("_" + imageLabel(p.Image) + "_\n\n")
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

// Export encodes the transcript in format, "md" or "json". An empty title
// is filled in first.
func (t *Transcript) Export(format string) ([]byte, error) {
	if t.Title == "" {
		t.Title = t.generateTitle()
	}
	switch strings.ToLower(format) {
	case "md", "markdown":
		return []byte(t.Markdown()), nil
	case "json", "":
		return t.JSON()
	}
	return nil, errors.Errorf("unknown export format %q (want md or json)", format)
}

func imageLabel(url string) string {
	mediaType := attach.MediaType(url)
	if mediaType == "" {
		mediaType = "image"
	}
	raw, err := attach.DecodeDataURL(url)
	if err != nil {
		return "[" + mediaType + "]"
	}
	return "[" + mediaType + ", " + humanize.Bytes(uint64(len(raw))) + "]"
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore keeps transcripts as one JSON file each.
type TranscriptStore struct {
	// BaseDir is the directory holding transcript files.
	BaseDir string

	// MaxTranscripts limits stored transcripts (0 = unlimited).
	MaxTranscripts int
}

// NewTranscriptStore creates the directory if needed.
func NewTranscriptStore(baseDir string, maxTranscripts int) (*TranscriptStore, error) {
	// SECURITY: Owner-only directory, transcripts may contain images and private text
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.Wrap(err, "create transcript directory")
	}
	return &TranscriptStore{
		BaseDir:        baseDir,
		MaxTranscripts: maxTranscripts,
	}, nil
}

// Save writes t and returns its ID. A missing ID or title is generated.
func (s *TranscriptStore) Save(t *Transcript) (string, error) {
	if t.ID == "" {
		t.ID = model.NewID()
	}
	if err := validateID(t.ID); err != nil {
		return "", err
	}
	if t.Title == "" {
		t.Title = t.generateTitle()
	}

	t.UpdatedAt = time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
	}

	data, err := t.JSON()
	if err != nil {
		return "", errors.Wrap(err, "marshal transcript")
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(s.filePath(t.ID), data, 0600, 0700); err != nil {
		return "", errors.Wrap(err, "write transcript")
	}

	if s.MaxTranscripts > 0 {
		s.prune()
	}
	return t.ID, nil
}

// prune removes the oldest transcripts beyond the limit.
func (s *TranscriptStore) prune() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}
	for _, m := range metas[s.MaxTranscripts:] {
		if err := s.Delete(m.ID); err != nil {
			log.Warn().Err(err).Str("transcript", m.ID).Msg("prune transcript")
		}
	}
}

// Load reads a transcript by ID.
func (s *TranscriptStore) Load(id string) (*Transcript, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrTranscriptNotFound, id)
		}
		return nil, errors.Wrap(err, "read transcript")
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "parse transcript %s", id)
	}
	return &t, nil
}

// LoadByIndex loads a transcript by its position in List (0 = most recent).
func (s *TranscriptStore) LoadByIndex(index int) (*Transcript, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, errors.Wrapf(ErrTranscriptNotFound, "index %d", index)
	}
	return s.Load(metas[index].ID)
}

// Resolve finds a transcript by list index, full ID, or unique ID suffix.
func (s *TranscriptStore) Resolve(ref string) (*Transcript, error) {
	ref = strings.TrimSpace(ref)
	if index, err := strconv.Atoi(ref); err == nil && index >= 0 && len(ref) < 4 {
		return s.LoadByIndex(index)
	}
	if err := validateID(ref); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.filePath(ref)); err == nil {
		return s.Load(ref)
	}

	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	var match string
	for _, m := range metas {
		if strings.HasSuffix(m.ID, ref) {
			if match != "" {
				return nil, errors.Errorf("transcript reference %q is ambiguous", ref)
			}
			match = m.ID
		}
	}
	if match == "" {
		return nil, errors.Wrap(ErrTranscriptNotFound, ref)
	}
	return s.Load(match)
}

// List returns all transcripts, most recent first. Unreadable files are skipped.
func (s *TranscriptStore) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, errors.Wrap(err, "read transcript directory")
	}

	metas := make([]Meta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		t, err := s.Load(strings.TrimSuffix(entry.Name(), fileExt))
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("skip unreadable transcript")
			continue
		}
		metas = append(metas, t.Meta())
	}

	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].ID > metas[j].ID
		}
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns transcripts whose title or any text turn contains query,
// case-insensitively.
func (s *TranscriptStore) Search(query string) ([]Meta, error) {
	all, err := s.List()
	if err != nil || query == "" {
		return all, err
	}

	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) {
			results = append(results, meta)
			continue
		}
		t, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range t.Messages {
			if strings.Contains(strings.ToLower(m.Content.PlainText()), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// Delete removes a transcript by ID.
func (s *TranscriptStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrTranscriptNotFound, id)
		}
		return errors.Wrap(err, "delete transcript")
	}
	return nil
}

func (s *TranscriptStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+fileExt)
}

// SECURITY: IDs become file names; reject anything that could escape BaseDir
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return nil
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders metas as a table for the terminal.
func FormatList(metas []Meta) string {
	if len(metas) == 0 {
		return "No transcripts found.\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-3s %-8s %-14s %-5s %s\n", "#", "ID", "Updated", "Msgs", "Title")
	for i, m := range metas {
		fmt.Fprintf(&sb, "%-3d %-8s %-14s %-5d %s\n",
			i,
			shortID(m.ID),
			humanize.Time(m.UpdatedAt),
			m.MessageCount,
			util.TruncateWidth(m.Title, 48),
		)
	}
	return sb.String()
}

// shortID returns the last eight characters, which vary most for UUIDv7.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
