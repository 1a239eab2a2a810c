// ABOUTME: Controller is the aggregate root for one conversational exchange
// ABOUTME: Binds identity, metadata, actions, response, and optional session memory; response finalization is one-shot

package captivate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/captivate-ai/captivate-go/delivery"
	"github.com/captivate-ai/captivate-go/memstore"
	"github.com/captivate-ai/captivate-go/session"
	"github.com/captivate-ai/captivate-go/summarize"
)

// StartChatSentinel marks a synthetic opening request that is not a real
// conversational turn; it never triggers title generation.
const StartChatSentinel = "START CHAT"

// FallbackTitle is assigned when title generation fails.
const FallbackTitle = "Untitled Conversation"

// Request is the normalized inbound request from the channel.
type Request struct {
	SessionID      string           `json:"session_id"`
	UserInput      string           `json:"user_input,omitempty"`
	Files          []map[string]any `json:"files,omitempty"`
	Metadata       Metadata         `json:"metadata"`
	IncomingAction []*Action        `json:"incoming_action,omitempty"`
	HasLivechat    bool             `json:"hasLivechat"`
}

// Controller models one conversational exchange: it ingests a normalized
// request, accumulates the outgoing response, and optionally maintains
// per-session memory. One logical request maps to one Controller instance;
// instances are not safe for concurrent use.
type Controller struct {
	sessionID       string
	userInput       string
	files           []map[string]any
	metadata        *Metadata
	incomingActions []*Action
	hasLivechat     bool

	response    *Response
	responseSet bool

	store           memstore.Store
	session         *session.Session
	summarizer      summarize.Summarizer
	contextTracking bool
	generateTitle   bool

	deliveryClient   *delivery.Client
	deliveryEndpoint string

	routerMode    bool
	agentsList    []string
	agentsListSet bool

	logger *slog.Logger
}

// Option configures a Controller during New.
type Option func(*Controller)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMemory enables conversational memory backed by the given store.
func WithMemory(store memstore.Store) Option {
	return func(c *Controller) { c.store = store }
}

// WithSummarizer attaches the summarization capability. Requires memory
// mode; New fails with ErrMemoryDisabled otherwise.
func WithSummarizer(s summarize.Summarizer) Option {
	return func(c *Controller) { c.summarizer = s }
}

// WithContextTracking enables long-term context extraction on each request.
func WithContextTracking() Option {
	return func(c *Controller) { c.contextTracking = true }
}

// WithTitleGeneration enables conversation title generation during New.
func WithTitleGeneration() Option {
	return func(c *Controller) { c.generateTitle = true }
}

// WithDeliveryClient overrides the default delivery client.
func WithDeliveryClient(client *delivery.Client) Option {
	return func(c *Controller) { c.deliveryClient = client }
}

// WithDeliveryEndpoint overrides environment-based endpoint resolution,
// for self-hosted channel deployments.
func WithDeliveryEndpoint(url string) Option {
	return func(c *Controller) { c.deliveryEndpoint = url }
}

// New constructs a Controller from an inbound request. With memory
// enabled it loads or creates the session record, appends the user turn,
// and runs the enabled best-effort enrichments (title generation, context
// extraction). Enrichment failures degrade and never abort construction;
// an unreadable session record is fatal.
func New(ctx context.Context, req *Request, opts ...Option) (*Controller, error) {
	if req == nil || req.SessionID == "" {
		return nil, ErrMissingSessionID
	}

	md := req.Metadata
	c := &Controller{
		sessionID:       req.SessionID,
		userInput:       req.UserInput,
		files:           slices.Clone(req.Files),
		metadata:        &md,
		incomingActions: slices.Clone(req.IncomingAction),
		hasLivechat:     req.HasLivechat,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "captivate", "session_id", c.sessionID)

	if c.summarizer != nil && c.store == nil {
		return nil, fmt.Errorf("enabling LLM features: %w", ErrMemoryDisabled)
	}
	if c.deliveryClient == nil {
		c.deliveryClient = delivery.NewClient(nil)
	}

	c.response = newResponse(c)

	if c.store != nil {
		if c.generateTitle && c.summarizer != nil {
			c.GenerateConversationTitle(ctx)
		}

		sess, err := session.LoadOrCreate(ctx, c.store, c.sessionID, session.DefaultTitle)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		c.session = sess

		if title, ok := c.metadata.ConversationTitle(); ok && sess.ConversationTitle == session.DefaultTitle {
			sess.ConversationTitle = title
		}

		if c.userInput != "" {
			sess.AppendTurn(session.RoleUser, c.userInput)
		}

		if c.contextTracking && c.summarizer != nil {
			extracted := c.ExtractContext(ctx)
			if len(extracted) > 0 {
				sess.MergeContext(extracted)
			}
		}

		if err := sess.Persist(ctx, c.store); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// EnableLLMFeatures attaches a summarizer after construction. Fails with
// ErrMemoryDisabled when memory mode is not enabled.
func (c *Controller) EnableLLMFeatures(s summarize.Summarizer, contextTracking, generateTitle bool) error {
	if c.store == nil {
		return fmt.Errorf("enabling LLM features: %w", ErrMemoryDisabled)
	}
	c.summarizer = s
	c.contextTracking = contextTracking
	c.generateTitle = generateTitle
	return nil
}

// SessionID returns the immutable session identifier.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// SetSessionID always fails: the session identifier is fixed at
// construction.
func (c *Controller) SetSessionID(string) error {
	return fmt.Errorf("session_id: %w", ErrImmutableField)
}

// HasLivechat returns the immutable livechat flag.
func (c *Controller) HasLivechat() bool {
	return c.hasLivechat
}

// SetHasLivechat always fails: the livechat flag is fixed at construction.
func (c *Controller) SetHasLivechat(bool) error {
	return fmt.Errorf("hasLivechat: %w", ErrImmutableField)
}

// UserInput returns the inbound user input, if any.
func (c *Controller) UserInput() string {
	return c.userInput
}

// Files returns a copy of the attached file descriptors.
func (c *Controller) Files() []map[string]any {
	return slices.Clone(c.files)
}

// IncomingActions returns a copy of the inbound actions.
func (c *Controller) IncomingActions() []*Action {
	return slices.Clone(c.incomingActions)
}

// Metadata returns the metadata document shared with the response.
func (c *Controller) Metadata() *Metadata {
	return c.metadata
}

// SetMetadata upserts a key in the custom metadata bag. Reserved keys
// fail with ErrReservedKey.
func (c *Controller) SetMetadata(key string, value any) error {
	return c.metadata.SetCustom(key, value)
}

// GetMetadata returns the value for a key in the custom metadata bag.
func (c *Controller) GetMetadata(key string) (any, bool) {
	return c.metadata.GetCustom(key)
}

// RemoveMetadata deletes a key from the custom metadata bag.
func (c *Controller) RemoveMetadata(key string) bool {
	return c.metadata.RemoveCustom(key)
}

// SetConversationTitle sets the conversation title on the metadata and,
// when memory is enabled, on the session record.
func (c *Controller) SetConversationTitle(title string) {
	c.metadata.SetConversationTitle(title)
	if c.session != nil {
		c.session.ConversationTitle = title
	}
}

// ConversationTitle returns the conversation title from metadata.
func (c *Controller) ConversationTitle() (string, bool) {
	return c.metadata.ConversationTitle()
}

// Channel returns the channel identifier from metadata.
func (c *Controller) Channel() string {
	return c.metadata.Channel()
}

// GetUser returns the user profile from metadata.
func (c *Controller) GetUser() *User {
	return c.metadata.GetUser()
}

// SetUser replaces the user profile in metadata.
func (c *Controller) SetUser(u *User) {
	c.metadata.SetUser(u)
}

// CreatedAt returns the conversation-created timestamp string.
func (c *Controller) CreatedAt() string {
	return c.metadata.CreatedAt()
}

// UpdatedAt returns the conversation-updated timestamp string.
func (c *Controller) UpdatedAt() string {
	return c.metadata.UpdatedAt()
}

// Response returns the outgoing response aggregate.
func (c *Controller) Response() *Response {
	return c.response
}

// ResponseJSON returns the serialized response aggregate.
func (c *Controller) ResponseJSON() (string, error) {
	raw, err := json.Marshal(c.response)
	if err != nil {
		return "", fmt.Errorf("serializing response: %w", err)
	}
	return string(raw), nil
}

// ChatHistory returns a copy of the session chat history. Empty without
// memory.
func (c *Controller) ChatHistory() []session.Turn {
	if c.session == nil {
		return nil
	}
	return slices.Clone(c.session.ChatHistory)
}

// ExtractedContext returns a copy of the session's extracted context.
func (c *Controller) ExtractedContext() map[string]any {
	if c.session == nil {
		return nil
	}
	out := make(map[string]any, len(c.session.ExtractedContext))
	for k, v := range c.session.ExtractedContext {
		out[k] = v
	}
	return out
}

// SetResponse finalizes the outgoing messages. The first call wins; any
// later call logs a warning and mutates nothing. With memory enabled the
// whole message sequence is appended as one bot turn and persisted.
func (c *Controller) SetResponse(ctx context.Context, messages []Message) error {
	if c.responseSet {
		c.logger.Warn("response already set, ignoring")
		return nil
	}
	c.responseSet = true
	c.response.SetMessages(messages)

	if c.store != nil && c.session != nil {
		c.session.AppendTurn(session.RoleBot, messages)
		if err := c.session.Persist(ctx, c.store); err != nil {
			return err
		}
	}
	return nil
}

// SetOutgoingActions replaces the outgoing actions. Independent of
// response finalization.
func (c *Controller) SetOutgoingActions(actions []*Action) {
	c.response.SetOutgoingActions(actions)
}

// GenerateConversationTitle generates and sets a conversation title via
// the summarizer. Best-effort: skipped without a summarizer, for blank
// input, and for the START CHAT sentinel; short-circuits when the stored
// session record already carries a generated title; any failure degrades
// to FallbackTitle.
func (c *Controller) GenerateConversationTitle(ctx context.Context) {
	if c.summarizer == nil {
		return
	}
	input := strings.TrimSpace(c.userInput)
	if input == "" || strings.EqualFold(input, StartChatSentinel) {
		return
	}

	// Reads the stored record rather than the in-memory session so
	// concurrent requests for the same session converge on one title.
	if c.store != nil {
		stored, err := session.Load(ctx, c.store, c.sessionID)
		switch {
		case err == nil:
			if stored.ConversationTitle != "" && stored.ConversationTitle != session.DefaultTitle {
				c.applyTitle(stored.ConversationTitle)
				return
			}
		case !errors.Is(err, memstore.ErrNotFound):
			c.logger.Warn("stored title check failed", "error", err)
		}
	}

	title := FallbackTitle
	content, err := c.summarizer.Invoke(ctx, summarize.TitlePrompt(input))
	if err != nil {
		c.logger.Warn("title generation failed", "error", err)
	} else if parsed, perr := summarize.ParseObject(content); perr != nil {
		c.logger.Warn("title generation returned malformed JSON", "error", perr)
	} else if t, ok := parsed["title"].(string); ok && strings.TrimSpace(t) != "" {
		title = strings.TrimSpace(t)
	} else {
		c.logger.Warn("title generation response missing title key")
	}

	c.applyTitle(title)
}

func (c *Controller) applyTitle(title string) {
	c.metadata.SetConversationTitle(title)
	if c.session != nil {
		c.session.ConversationTitle = title
	}
}

// ExtractContext asks the summarizer for flat, lower-cased-key facts about
// the user. Best-effort: returns an empty map without a summarizer or on
// transport failure, and {"error": ...} on a malformed response.
func (c *Controller) ExtractContext(ctx context.Context) map[string]any {
	if c.summarizer == nil {
		return map[string]any{}
	}

	var lastBot string
	if c.session != nil {
		if turn, ok := c.session.LastBotTurn(); ok {
			lastBot = stringifyTurnContent(turn.Content)
		}
	}

	content, err := c.summarizer.Invoke(ctx, summarize.ContextPrompt(lastBot, c.userInput))
	if err != nil {
		c.logger.Warn("context extraction failed", "error", err)
		return map[string]any{}
	}

	parsed, err := summarize.ParseObject(content)
	if err != nil {
		c.logger.Warn("context extraction returned malformed JSON", "error", err)
		return map[string]any{"error": err.Error()}
	}
	return parsed
}

func stringifyTurnContent(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Deliver serializes the response aggregate and posts it to the channel
// endpoint for the given environment ("dev" or "prod"; anything else maps
// to dev). Fails with ErrNoResponse until SetResponse has been called.
// Transport failures surface as *delivery.Error.
func (c *Controller) Deliver(ctx context.Context, environment string) ([]byte, error) {
	if !c.responseSet {
		return nil, ErrNoResponse
	}

	url := c.deliveryEndpoint
	if url == "" {
		url = delivery.EndpointFor(environment)
	}

	body, err := c.deliveryClient.Send(ctx, url, c.response)
	if err != nil {
		return nil, fmt.Errorf("delivering response: %w", err)
	}

	c.logger.Debug("response delivered", "endpoint", url)
	return body, nil
}
