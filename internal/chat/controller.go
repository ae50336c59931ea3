// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatbot-tui/internal/attach"
	"github.com/jeranaias/chatbot-tui/internal/auth"
	"github.com/jeranaias/chatbot-tui/internal/backend"
	"github.com/jeranaias/chatbot-tui/internal/i18n"
	"github.com/jeranaias/chatbot-tui/internal/model"
)

// Error variables returned when an operation cannot start.
var (
	// ErrBusy indicates a dispatch is already in flight.
	ErrBusy = errors.New("a request is already in flight")

	// ErrEmptyInput indicates there is neither text nor an attachment to send.
	ErrEmptyInput = errors.New("nothing to send")

	// ErrIndexOutOfRange indicates an index outside the current list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrAttachmentEncode indicates an attachment could not be encoded;
	// nothing was sent.
	ErrAttachmentEncode = errors.New("attachment could not be encoded")

	// ErrTooManyAttachments indicates the pending list is full.
	ErrTooManyAttachments = errors.New("too many attachments")

	// ErrUnknownModel indicates a model outside the static catalog.
	ErrUnknownModel = errors.New("unknown model")
)

// DefaultMaxAttachments is the pending-list limit when none is configured.
const DefaultMaxAttachments = 8

// Backend performs one round trip against the conversation endpoint.
type Backend interface {
	Chat(ctx context.Context, req backend.Request) (*backend.ChatResponse, error)
}

// =============================================================================
// OUTCOMES
// =============================================================================

// Outcome classifies how a dispatch ended.
type Outcome int

const (
	// OutcomeReply: the backend returned reply text.
	OutcomeReply Outcome = iota
	// OutcomePlaceholder: the response carried no reply text.
	OutcomePlaceholder
	// OutcomeAuthUnavailable: no token; no request was made.
	OutcomeAuthUnavailable
	// OutcomeTransportFailure: network error, non-2xx status, or bad body.
	OutcomeTransportFailure
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeReply:
		return "reply"
	case OutcomePlaceholder:
		return "placeholder"
	case OutcomeAuthUnavailable:
		return "auth_unavailable"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Failed reports whether the appended turn is the fixed error string.
func (o Outcome) Failed() bool {
	return o == OutcomeAuthUnavailable || o == OutcomeTransportFailure
}

// Result describes a completed dispatch.
type Result struct {
	Outcome Outcome

	// Message is the assistant turn that was appended.
	Message model.Message

	// Cause is the absorbed failure, for logging only.
	Cause error

	Duration time.Duration
}

// =============================================================================
// STATE SNAPSHOT
// =============================================================================

// PendingInfo describes a pending attachment without exposing its handle.
type PendingInfo struct {
	ID    string
	Name  string
	Size  int
	Label string
}

// State is a copy of the conversation state.
type State struct {
	Messages []model.Message
	Pending  []PendingInfo
	Draft    string
	Busy     bool
	Model    string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the conversation state. It is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	store   *model.ConversationStore
	pending []*attach.Pending
	draft   string
	modelID string

	client         Backend
	tokens         auth.TokenProvider
	encoder        attach.Encoder
	text           i18n.Strings
	timeout        time.Duration
	maxAttachments int
	maxBytes       int64
	logger         zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithEncoder replaces the attachment encoder.
func WithEncoder(enc attach.Encoder) Option {
	return func(c *Controller) { c.encoder = enc }
}

// WithStrings sets the fixed error and placeholder strings.
func WithStrings(s i18n.Strings) Option {
	return func(c *Controller) { c.text = s }
}

// WithModel selects the initial model.
func WithModel(id string) Option {
	return func(c *Controller) { c.modelID = id }
}

// WithTimeout bounds each dispatch.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAttachmentLimits bounds the pending list and per-file size.
func WithAttachmentLimits(maxCount int, maxBytes int64) Option {
	return func(c *Controller) {
		if maxCount > 0 {
			c.maxAttachments = maxCount
		}
		if maxBytes > 0 {
			c.maxBytes = maxBytes
		}
	}
}

// WithLogger replaces the global logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller with an empty conversation.
func New(client Backend, tokens auth.TokenProvider, opts ...Option) *Controller {
	c := &Controller{
		store:          model.NewConversationStore(),
		modelID:        model.DefaultModelID,
		client:         client,
		tokens:         tokens,
		encoder:        attach.DataURLEncoder{},
		text:           i18n.For(i18n.DefaultLocale),
		timeout:        backend.DefaultTimeout,
		maxAttachments: DefaultMaxAttachments,
		maxBytes:       attach.DefaultMaxBytes,
		logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "chat").Logger()
	return c
}

// =============================================================================
// INPUT OPERATIONS
// =============================================================================

// SetDraft replaces the input draft.
func (c *Controller) SetDraft(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Busy() {
		return ErrBusy
	}
	c.draft = s
	return nil
}

// Attach adds p to the end of the pending list and takes ownership of it.
// On error the caller keeps ownership.
func (c *Controller) Attach(p *attach.Pending) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Busy() {
		return ErrBusy
	}
	if len(c.pending) >= c.maxAttachments {
		return errors.Wrapf(ErrTooManyAttachments, "limit %d", c.maxAttachments)
	}
	c.pending = append(c.pending, p)
	return nil
}

// AttachFile opens an image file and attaches it.
func (c *Controller) AttachFile(path string) (PendingInfo, error) {
	p, err := attach.FromFile(path, c.maxBytes)
	if err != nil {
		return PendingInfo{}, err
	}
	if err := c.Attach(p); err != nil {
		p.Release()
		return PendingInfo{}, err
	}
	return describe(p), nil
}

// RemoveAttachment drops the pending attachment at index i and releases its
// handle. Later attachments shift down by one.
func (c *Controller) RemoveAttachment(i int) error {
	c.mu.Lock()
	if c.store.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if i < 0 || i >= len(c.pending) {
		c.mu.Unlock()
		return errors.Wrapf(ErrIndexOutOfRange, "attachment %d of %d", i, len(c.pending))
	}
	p := c.pending[i]
	c.pending = slices.Delete(c.pending, i, i+1)
	c.mu.Unlock()

	c.release(p)
	return nil
}

// SelectModel sets the model used for later dispatches.
func (c *Controller) SelectModel(id string) error {
	if _, ok := model.GetModelInfo(id); !ok {
		return errors.Wrap(ErrUnknownModel, id)
	}
	c.mu.Lock()
	c.modelID = id
	c.mu.Unlock()
	return nil
}

// Reset starts a new conversation and releases pending attachments.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.store.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	pending := c.pending
	c.store = model.NewConversationStore()
	c.pending = nil
	c.draft = ""
	c.mu.Unlock()

	for _, p := range pending {
		c.release(p)
	}
	return nil
}

// Close releases any pending attachments. Attachments owned by an in-flight
// send are left to that send.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.store.Busy() {
		c.mu.Unlock()
		return
	}
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, p := range pending {
		c.release(p)
	}
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]PendingInfo, len(c.pending))
	for i, p := range c.pending {
		infos[i] = describe(p)
	}
	return State{
		Messages: c.store.Messages(),
		Pending:  infos,
		Draft:    c.draft,
		Busy:     c.store.Busy(),
		Model:    c.modelID,
	}
}

// Messages returns a copy of the history.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages()
}

// Busy reports whether a dispatch is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Busy()
}

// Model returns the selected model ID.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modelID
}

// LastAssistantIndex returns the index of the latest assistant turn, or -1.
func (c *Controller) LastAssistantIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.LastIndexOf(model.RoleAssistant)
}

// =============================================================================
// SEND / REGENERATE
// =============================================================================

// Send turns the draft and pending attachments into a user turn and
// dispatches the conversation.
//
// The user turn holds the trimmed draft (if any) followed by one image per
// attachment in selection order. If any attachment fails to encode, nothing
// is appended, the draft and attachments are left in place, and the returned
// error wraps ErrAttachmentEncode. Once dispatch starts, Send returns a nil
// error and the Result describes the appended assistant turn.
func (c *Controller) Send(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.store.Busy() {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	text := strings.TrimSpace(c.draft)
	if text == "" && len(c.pending) == 0 {
		c.mu.Unlock()
		return Result{}, ErrEmptyInput
	}
	c.store.SetBusy(true)
	items := slices.Clone(c.pending)
	c.mu.Unlock()

	// Caller cancellation never interrupts a send once the gate is claimed.
	ctx = context.WithoutCancel(ctx)

	urls, err := attach.EncodeAll(ctx, c.encoder, items)
	if err != nil {
		c.mu.Lock()
		c.store.SetBusy(false)
		c.mu.Unlock()

		c.logger.Warn().Err(err).Int("attachments", len(items)).Msg("send aborted: attachment encode failed")
		return Result{}, fmt.Errorf("%w: %w", ErrAttachmentEncode, err)
	}

	parts := make([]model.Part, 0, len(urls)+1)
	if text != "" {
		parts = append(parts, model.TextPart(text))
	}
	for _, u := range urls {
		parts = append(parts, model.ImagePart(u))
	}
	msg := model.NewUserMessage(model.NewContent(parts...))

	c.mu.Lock()
	c.store.Append(msg)
	c.draft = ""
	c.pending = nil
	c.mu.Unlock()

	// Ownership moved into the encoded parts.
	for _, p := range items {
		c.release(p)
	}

	return c.dispatch(ctx), nil
}

// Regenerate discards the turn at index i and everything after it, then
// dispatches the remaining history. The new assistant turn always has a
// fresh ID.
func (c *Controller) Regenerate(ctx context.Context, i int) (Result, error) {
	c.mu.Lock()
	if c.store.Busy() {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	if i < 0 || i >= c.store.Len() {
		n := c.store.Len()
		c.mu.Unlock()
		return Result{}, errors.Wrapf(ErrIndexOutOfRange, "message %d of %d", i, n)
	}
	c.store.Truncate(i)
	c.store.SetBusy(true)
	c.mu.Unlock()

	return c.dispatch(context.WithoutCancel(ctx)), nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// dispatch runs the shared protocol. The busy gate must already be held.
func (c *Controller) dispatch(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.fetchToken(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("token provider failed")
	}
	if token == "" {
		return c.finish(OutcomeAuthUnavailable, c.text.DispatchError, err, start)
	}

	c.mu.Lock()
	history := c.store.Messages()
	modelID := c.modelID
	c.mu.Unlock()

	resp, err := c.roundTrip(ctx, backend.Request{
		Token:    token,
		Model:    modelID,
		Messages: history,
	})
	if err != nil {
		return c.finish(OutcomeTransportFailure, c.text.DispatchError, err, start)
	}

	reply, ok := resp.Reply()
	if !ok {
		return c.finish(OutcomePlaceholder, c.text.NoResponse, nil, start)
	}
	return c.finish(OutcomeReply, reply, nil, start)
}

// finish appends the assistant turn and clears the gate in one step.
func (c *Controller) finish(outcome Outcome, text string, cause error, start time.Time) Result {
	msg := model.NewAssistantMessage(text)

	c.mu.Lock()
	c.store.Append(msg)
	c.store.SetBusy(false)
	n := c.store.Len()
	c.mu.Unlock()

	res := Result{
		Outcome:  outcome,
		Message:  msg,
		Cause:    cause,
		Duration: time.Since(start),
	}

	ev := c.logger.Info()
	if outcome.Failed() {
		ev = c.logger.Warn().Err(cause)
	}
	ev.Str("outcome", outcome.String()).
		Str("message_id", msg.ID).
		Int("history", n).
		Dur("duration", res.Duration).
		Msg("dispatch complete")

	return res
}

// fetchToken asks the provider for a token. A nil provider or a panic in
// the provider counts as no token.
func (c *Controller) fetchToken(ctx context.Context) (token string, err error) {
	if c.tokens == nil {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			token, err = "", errors.Errorf("token provider panic: %v", r)
		}
	}()
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tok), nil
}

// roundTrip calls the backend, converting a panic into an error.
func (c *Controller) roundTrip(ctx context.Context, req backend.Request) (resp *backend.ChatResponse, err error) {
	if c.client == nil {
		return nil, backend.ErrNotConfigured
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, errors.Errorf("backend panic: %v", r)
		}
	}()
	resp, err = c.client.Chat(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("backend returned no response")
	}
	return resp, err
}

func (c *Controller) release(p *attach.Pending) {
	if err := p.Release(); err != nil {
		c.logger.Warn().Err(err).Str("attachment", p.Name).Msg("release attachment handle")
	}
}

func describe(p *attach.Pending) PendingInfo {
	return PendingInfo{
		ID:    p.ID,
		Name:  p.Name,
		Size:  p.Size(),
		Label: p.Describe(),
	}
}
