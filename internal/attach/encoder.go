// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attach

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNotImage is returned when the raw bytes are not a recognised image.
var ErrNotImage = errors.New("attachment is not an image")

// =============================================================================
// ENCODER
// =============================================================================

// Encoder converts raw image bytes into an inline representation.
type Encoder interface {
	Encode(ctx context.Context, raw []byte) (string, error)
}

// DataURLEncoder produces RFC 2397 data URLs ("data:image/png;base64,...").
// The media type is sniffed from the content.
type DataURLEncoder struct{}

// Encode implements Encoder.
func (DataURLEncoder) Encode(ctx context.Context, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", ErrEmpty
	}

	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", errors.Wrapf(ErrNotImage, "detected %s", mime)
	}

	var sb strings.Builder
	sb.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(raw)))
	sb.WriteString("data:")
	sb.WriteString(mime)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(raw))
	return sb.String(), nil
}

// MediaType extracts the media type from a data URL, or "" if url is not one.
func MediaType(url string) string {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return ""
	}
	mime, _, ok := strings.Cut(rest, ";")
	if !ok {
		return ""
	}
	return mime
}

// DecodeDataURL returns the bytes carried by a base64 data URL.
func DecodeDataURL(url string) ([]byte, error) {
	_, payload, ok := strings.Cut(url, ";base64,")
	if !ok || !strings.HasPrefix(url, "data:") {
		return nil, errors.New("not a base64 data url")
	}
	return base64.StdEncoding.DecodeString(payload)
}

// =============================================================================
// CONCURRENT ENCODING
// =============================================================================

// EncodeAll encodes every attachment concurrently and waits for all of them.
// Results are returned in input order. The first failure cancels the
// remaining encodes and is returned, annotated with the attachment name.
func EncodeAll(ctx context.Context, enc Encoder, items []*Pending) ([]string, error) {
	out := make([]string, len(items))
	if len(items) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			url, err := enc.Encode(gctx, item.Bytes)
			if err != nil {
				return errors.Wrapf(err, "encode %s", item.Name)
			}
			out[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
