// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultMaxBytes is the per-image size limit when none is configured.
const DefaultMaxBytes = 5 << 20

var (
	// ErrTooLarge is returned when an image exceeds the configured size limit.
	ErrTooLarge = errors.New("attachment too large")

	// ErrEmpty is returned for zero-length attachments.
	ErrEmpty = errors.New("attachment is empty")
)

// =============================================================================
// HANDLE
// =============================================================================

// Handle is a transient local reference backing a pending attachment.
type Handle interface {
	// Ref returns a short description of the referenced resource.
	Ref() string

	// Release frees the resource.
	Release() error
}

// fileHandle keeps the selected file open until the attachment is sent or
// removed.
type fileHandle struct {
	f *os.File
}

func (h *fileHandle) Ref() string { return h.f.Name() }

func (h *fileHandle) Release() error { return h.f.Close() }

// =============================================================================
// PENDING ATTACHMENT
// =============================================================================

// Pending is an image selected by the user but not yet sent.
type Pending struct {
	ID     string
	Name   string
	Handle Handle
	Bytes  []byte

	once     sync.Once
	released atomic.Bool
	err      error
}

// New creates a pending attachment over raw bytes and a handle.
func New(name string, data []byte, h Handle) *Pending {
	return &Pending{
		ID:     uuid.NewString(),
		Name:   name,
		Handle: h,
		Bytes:  data,
	}
}

// FromFile opens path, reads at most maxBytes of it, and keeps the file open
// as the attachment's handle. A maxBytes of zero or less uses DefaultMaxBytes.
func FromFile(path string, maxBytes int64) (*Pending, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open attachment")
	}

	// SECURITY: LimitReader bounds memory for oversized files
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "read attachment %s", path)
	}
	if int64(len(data)) > maxBytes {
		f.Close()
		return nil, errors.Wrapf(ErrTooLarge, "%s exceeds %s", filepath.Base(path), humanize.IBytes(uint64(maxBytes)))
	}
	if len(data) == 0 {
		f.Close()
		return nil, errors.Wrapf(ErrEmpty, "%s", filepath.Base(path))
	}

	return New(filepath.Base(path), data, &fileHandle{f: f}), nil
}

// Release frees the underlying handle. Only the first call has any effect;
// later calls return the first call's error.
func (p *Pending) Release() error {
	p.once.Do(func() {
		p.released.Store(true)
		if p.Handle != nil {
			p.err = p.Handle.Release()
		}
		p.Bytes = nil
	})
	return p.err
}

// Released reports whether Release has been called.
func (p *Pending) Released() bool {
	return p.released.Load()
}

// Size returns the number of raw bytes held.
func (p *Pending) Size() int {
	return len(p.Bytes)
}

// Describe returns a short label such as "photo.png (12 kB)".
func (p *Pending) Describe() string {
	return p.Name + " (" + humanize.Bytes(uint64(len(p.Bytes))) + ")"
}
