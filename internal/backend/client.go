// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// Configuration constants for the conversation endpoint.
const (
	// EndpointPath is appended to the base URL for every request.
	EndpointPath = "/chatbot"

	// DefaultTimeout is the default timeout for a round trip.
	DefaultTimeout = 60 * time.Second

	// DefaultContentType is the content-type marker sent with each request.
	DefaultContentType = "text/plain"

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// maxErrorExcerpt bounds the body text kept on a StatusError.
	maxErrorExcerpt = 512

	userAgent = "chatbot-tui/0.1.0"
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared transport for all endpoint requests.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

var (
	// ErrNotConfigured indicates the base URL is not set.
	ErrNotConfigured = errors.New("backend base URL not configured")

	// ErrNoToken indicates a request was attempted without a bearer token.
	ErrNoToken = errors.New("no auth token")

	// ErrResponseTooLarge indicates the body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Body)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one history entry on the wire.
// Content encodes as a string or as an array of {type,text?,image?}.
type ChatMessage struct {
	Role    string        `json:"role"`
	Content model.Content `json:"content"`
}

// ChatRequest is the request body.
type ChatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse is the response body.
type ChatResponse struct {
	ID      string `json:"id,omitempty"`
	Choices []struct {
		Message struct {
			Role    string        `json:"role"`
			Content model.Content `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// Reply returns the text of the first choice.
// ok is false when there is no first choice or its content is empty.
func (r *ChatResponse) Reply() (text string, ok bool) {
	if r == nil || len(r.Choices) == 0 {
		return "", false
	}
	text = r.Choices[0].Message.Content.PlainText()
	return text, text != ""
}

// MessagesFromHistory converts stored messages to wire form.
func MessagesFromHistory(history []model.Message) []ChatMessage {
	out := make([]ChatMessage, len(history))
	for i, m := range history {
		out[i] = ChatMessage{Role: m.Role.String(), Content: m.Content}
	}
	return out
}

// =============================================================================
// CLIENT
// =============================================================================

// Request is one round trip's input.
type Request struct {
	Token    string
	Model    string
	Messages []model.Message
}

// Client talks to the conversation endpoint.
type Client struct {
	baseURL     string
	contentType string
	sendModel   bool
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient creates a client for baseURL. A trailing slash is ignored.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		contentType: DefaultContentType,
		timeout:     DefaultTimeout,
		httpClient: &http.Client{
			Transport: sharedTransport,
			Timeout:   DefaultTimeout,
		},
	}
}

// WithTimeout sets the round-trip timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
		c.httpClient.Timeout = timeout
	}
	return c
}

// WithContentType overrides the content-type marker.
func (c *Client) WithContentType(contentType string) *Client {
	if contentType != "" {
		c.contentType = contentType
	}
	return c
}

// WithModelField includes the selected model in request bodies.
func (c *Client) WithModelField(enabled bool) *Client {
	c.sendModel = enabled
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// Endpoint returns the full request URL.
func (c *Client) Endpoint() string {
	return c.baseURL + EndpointPath
}

// Timeout returns the configured round-trip timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// IsConfigured reports whether a base URL is set.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// Chat posts the history and decodes the reply.
//
// A non-2xx status yields *StatusError. Transport failures, oversized bodies
// and undecodable JSON are returned wrapped. A decoded body with no usable
// reply is not an error; see ChatResponse.Reply.
func (c *Client) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if req.Token == "" {
		return nil, ErrNoToken
	}

	body := ChatRequest{Messages: MessagesFromHistory(req.Messages)}
	if c.sendModel {
		body.Model = req.Model
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	httpReq.Header.Set("Content-Type", c.contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)

	// SECURITY: Clear Authorization header immediately after request to prevent logging
	httpReq.Header.Del("Authorization")

	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", http.MethodPost).
		Str("path", httpReq.URL.Path).
		Int("status", resp.StatusCode).
		Int("messages", len(req.Messages)).
		Str("token", Fingerprint(req.Token)).
		Dur("duration", time.Since(start)).
		Msg("backend round trip")

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Body: excerpt(data)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, errors.Wrap(err, "parse response")
	}
	return &chatResp, nil
}

// readResponse reads the response body with size limits to prevent memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	// SECURITY: Limit response size to prevent memory exhaustion
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, errors.Wrapf(ErrResponseTooLarge, "limit %d bytes", MaxResponseSize)
	}
	return body, nil
}

// excerpt trims an error body for inclusion in a StatusError.
func excerpt(body []byte) string {
	return util.TruncateRunes(strings.TrimSpace(string(body)), maxErrorExcerpt)
}

// Fingerprint returns a short SHA-256 fingerprint of a secret for logging.
// SECURITY: Never log token fragments.
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:4])
}
