// ABOUTME: Tests for the controller lifecycle: construction, finalization, memory, enrichment, delivery

package captivate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captivate-ai/captivate-go/delivery"
	"github.com/captivate-ai/captivate-go/memstore"
	"github.com/captivate-ai/captivate-go/session"
)

// mockSummarizer scripts summarizer responses and records prompts.
type mockSummarizer struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (m *mockSummarizer) Invoke(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestNew_RequiresSessionID(t *testing.T) {
	_, err := New(context.Background(), &Request{})
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = New(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestNew_SummarizerRequiresMemory(t *testing.T) {
	_, err := New(context.Background(), &Request{SessionID: "s1"},
		WithSummarizer(&mockSummarizer{}))
	assert.ErrorIs(t, err, ErrMemoryDisabled)
}

func TestController_ImmutableFields(t *testing.T) {
	ctrl, err := New(context.Background(), &Request{SessionID: "s1", HasLivechat: true})
	require.NoError(t, err)

	assert.ErrorIs(t, ctrl.SetSessionID("other"), ErrImmutableField)
	assert.ErrorIs(t, ctrl.SetHasLivechat(false), ErrImmutableField)

	assert.Equal(t, "s1", ctrl.SessionID())
	assert.True(t, ctrl.HasLivechat())
}

func TestController_SetResponse_FirstCallWins(t *testing.T) {
	ctx := context.Background()
	ctrl, err := New(ctx, &Request{SessionID: "s1"})
	require.NoError(t, err)

	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("first")}))

	// The second call is a logged no-op, not an error.
	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("second")}))

	got := ctrl.Response().Messages()
	require.Len(t, got, 1)
	assert.Equal(t, NewTextMessage("first"), got[0])
}

func TestController_MemoryFlow(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()

	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "hi"},
		WithMemory(store))
	require.NoError(t, err)

	history := ctrl.ChatHistory()
	require.Len(t, history, 1)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Content)

	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("hello!")}))

	// The whole outgoing sequence lands as one bot turn in the stored record.
	stored, err := session.Load(ctx, store, "s1")
	require.NoError(t, err)
	require.Len(t, stored.ChatHistory, 2)
	assert.Equal(t, session.RoleUser, stored.ChatHistory[0].Role)
	assert.Equal(t, session.RoleBot, stored.ChatHistory[1].Role)
}

func TestController_MemoryFlow_AccumulatesAcrossRequests(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()

	first, err := New(ctx, &Request{SessionID: "s1", UserInput: "hi"}, WithMemory(store))
	require.NoError(t, err)
	require.NoError(t, first.SetResponse(ctx, []Message{NewTextMessage("hello!")}))

	second, err := New(ctx, &Request{SessionID: "s1", UserInput: "how are you?"}, WithMemory(store))
	require.NoError(t, err)

	history := second.ChatHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "how are you?", history[2].Content)
}

func TestController_MemoryFlow_EmptyInputAddsNoTurn(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()

	ctrl, err := New(ctx, &Request{SessionID: "s1"}, WithMemory(store))
	require.NoError(t, err)

	assert.Empty(t, ctrl.ChatHistory())
}

func TestController_CorruptSessionRecordIsFatal(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, session.Key("s1"), "{not json"))

	_, err := New(ctx, &Request{SessionID: "s1", UserInput: "hi"}, WithMemory(store))
	assert.ErrorIs(t, err, session.ErrCorruptRecord)
}

func TestController_MetadataTitleSeedsSession(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()

	md := Metadata{}
	md.SetConversationTitle("Seeded Title")

	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "hi", Metadata: md},
		WithMemory(store))
	require.NoError(t, err)
	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("ok")}))

	stored, err := session.Load(ctx, store, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Seeded Title", stored.ConversationTitle)
}

func TestController_TitleGeneration(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()
	summarizer := &mockSummarizer{response: `{"title": "Trip to Paris"}`}

	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "I want to plan a trip to Paris"},
		WithMemory(store),
		WithSummarizer(summarizer),
		WithTitleGeneration())
	require.NoError(t, err)

	title, ok := ctrl.ConversationTitle()
	require.True(t, ok)
	assert.Equal(t, "Trip to Paris", title)

	require.Equal(t, 1, summarizer.calls)
	assert.Contains(t, summarizer.prompts[0], "I want to plan a trip to Paris")

	// The generated title is persisted with the session record.
	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("sure")}))
	stored, err := session.Load(ctx, store, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Trip to Paris", stored.ConversationTitle)
}

func TestController_TitleGeneration_SkipsStartChatSentinel(t *testing.T) {
	ctx := context.Background()
	summarizer := &mockSummarizer{response: `{"title": "nope"}`}

	for _, input := range []string{"START CHAT", "start chat", "  Start Chat  ", ""} {
		ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: input},
			WithMemory(memstore.NewMemoryStore()),
			WithSummarizer(summarizer),
			WithTitleGeneration())
		require.NoError(t, err)

		_, ok := ctrl.ConversationTitle()
		assert.False(t, ok, "input %q", input)
	}

	assert.Zero(t, summarizer.calls)
}

func TestController_TitleGeneration_ShortCircuitsOnStoredTitle(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewMemoryStore()

	existing := session.New("s1", "Existing Title")
	require.NoError(t, existing.Persist(ctx, store))

	summarizer := &mockSummarizer{response: `{"title": "nope"}`}
	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "more questions"},
		WithMemory(store),
		WithSummarizer(summarizer),
		WithTitleGeneration())
	require.NoError(t, err)

	title, ok := ctrl.ConversationTitle()
	require.True(t, ok)
	assert.Equal(t, "Existing Title", title)
	assert.Zero(t, summarizer.calls)
}

func TestController_TitleGeneration_FallbackOnMalformedOutput(t *testing.T) {
	ctx := context.Background()
	summarizer := &mockSummarizer{response: "sorry, I cannot help with that"}

	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "hello there"},
		WithMemory(memstore.NewMemoryStore()),
		WithSummarizer(summarizer),
		WithTitleGeneration())
	require.NoError(t, err)

	title, ok := ctrl.ConversationTitle()
	require.True(t, ok)
	assert.Equal(t, FallbackTitle, title)
}

func TestController_TitleGeneration_FallbackOnSummarizerError(t *testing.T) {
	ctx := context.Background()
	summarizer := &mockSummarizer{err: errors.New("model unavailable")}

	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "hello there"},
		WithMemory(memstore.NewMemoryStore()),
		WithSummarizer(summarizer),
		WithTitleGeneration())
	require.NoError(t, err)

	title, ok := ctrl.ConversationTitle()
	require.True(t, ok)
	assert.Equal(t, FallbackTitle, title)
}

func TestController_ContextTracking(t *testing.T) {
	ctx := context.Background()
	summarizer := &mockSummarizer{response: "```json\n{\"Favorite_City\": \"Paris\"}\n```"}

	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "I love Paris"},
		WithMemory(memstore.NewMemoryStore()),
		WithSummarizer(summarizer),
		WithContextTracking())
	require.NoError(t, err)

	// Keys are lower-cased on merge.
	extracted := ctrl.ExtractedContext()
	assert.Equal(t, map[string]any{"favorite_city": "Paris"}, extracted)
}

func TestController_ExtractContext_ErrorShapes(t *testing.T) {
	ctx := context.Background()

	// Transport failure degrades to an empty map.
	ctrl, err := New(ctx, &Request{SessionID: "s1", UserInput: "hi"},
		WithMemory(memstore.NewMemoryStore()),
		WithSummarizer(&mockSummarizer{err: errors.New("down")}))
	require.NoError(t, err)
	assert.Empty(t, ctrl.ExtractContext(ctx))

	// Malformed output surfaces under the "error" key.
	ctrl2, err := New(ctx, &Request{SessionID: "s2", UserInput: "hi"},
		WithMemory(memstore.NewMemoryStore()),
		WithSummarizer(&mockSummarizer{response: "not an object"}))
	require.NoError(t, err)

	got := ctrl2.ExtractContext(ctx)
	assert.Contains(t, got, "error")
}

func TestController_EnableLLMFeatures(t *testing.T) {
	ctx := context.Background()

	ctrl, err := New(ctx, &Request{SessionID: "s1"})
	require.NoError(t, err)
	assert.ErrorIs(t, ctrl.EnableLLMFeatures(&mockSummarizer{}, true, true), ErrMemoryDisabled)

	ctrl2, err := New(ctx, &Request{SessionID: "s2"}, WithMemory(memstore.NewMemoryStore()))
	require.NoError(t, err)
	require.NoError(t, ctrl2.EnableLLMFeatures(&mockSummarizer{response: "{}"}, true, true))
}

func TestController_Deliver_RequiresFinalization(t *testing.T) {
	ctx := context.Background()
	ctrl, err := New(ctx, &Request{SessionID: "s1"})
	require.NoError(t, err)

	_, err = ctrl.Deliver(ctx, delivery.EnvDev)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestController_Deliver_PostsAggregate(t *testing.T) {
	ctx := context.Background()

	var posted []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		posted, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ctrl, err := New(ctx, &Request{SessionID: "s1", HasLivechat: true},
		WithDeliveryClient(delivery.NewClient(srv.Client())),
		WithDeliveryEndpoint(srv.URL))
	require.NoError(t, err)
	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("hi")}))

	body, err := ctrl.Deliver(ctx, delivery.EnvProd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "application/json", contentType)

	var wire struct {
		Response    []map[string]any `json:"response"`
		SessionID   string           `json:"session_id"`
		HasLivechat bool             `json:"hasLivechat"`
	}
	require.NoError(t, json.Unmarshal(posted, &wire))
	require.Len(t, wire.Response, 1)
	assert.Equal(t, "hi", wire.Response[0]["text"])
	assert.Equal(t, "s1", wire.SessionID)
	assert.True(t, wire.HasLivechat)
}

func TestController_Deliver_Non2xxSurfacesDeliveryError(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad channel", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctrl, err := New(ctx, &Request{SessionID: "s1"},
		WithDeliveryClient(delivery.NewClient(srv.Client())),
		WithDeliveryEndpoint(srv.URL))
	require.NoError(t, err)
	require.NoError(t, ctrl.SetResponse(ctx, []Message{NewTextMessage("hi")}))

	_, err = ctrl.Deliver(ctx, delivery.EnvDev)
	var dErr *delivery.Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, http.StatusBadGateway, dErr.Status)
}

func TestController_RouterModeGating(t *testing.T) {
	ctx := context.Background()
	ctrl, err := New(ctx, &Request{SessionID: "s1"})
	require.NoError(t, err)

	assert.ErrorIs(t, ctrl.SetAgentsList([]string{"a"}), ErrRouterModeDisabled)
	_, err = ctrl.AgentsList()
	assert.ErrorIs(t, err, ErrRouterModeDisabled)
	_, err = ctrl.OutgoingActions()
	assert.ErrorIs(t, err, ErrRouterModeDisabled)
	_, err = ctrl.IsEscalatingToAgentRouter()
	assert.ErrorIs(t, err, ErrRouterModeDisabled)

	ctrl.EnableRouterMode()
	assert.True(t, ctrl.RouterModeEnabled())

	require.NoError(t, ctrl.SetAgentsList([]string{"billing", "sales"}))
	assert.ErrorIs(t, ctrl.SetAgentsList([]string{"other"}), ErrAgentsAlreadySet)

	agents, err := ctrl.AgentsList()
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "sales"}, agents)

	escalating, err := ctrl.IsEscalatingToAgentRouter()
	require.NoError(t, err)
	assert.False(t, escalating)

	ctrl.Response().EscalateToAgentRouter("needs routing", "", nil)
	escalating, err = ctrl.IsEscalatingToAgentRouter()
	require.NoError(t, err)
	assert.True(t, escalating)

	// Disabling re-gates the accessors but keeps the one-shot guard.
	ctrl.DisableRouterMode()
	_, err = ctrl.AgentsList()
	assert.ErrorIs(t, err, ErrRouterModeDisabled)
	ctrl.EnableRouterMode()
	assert.ErrorIs(t, ctrl.SetAgentsList([]string{"again"}), ErrAgentsAlreadySet)
}

func TestRequest_UnmarshalJSON(t *testing.T) {
	raw := `{
		"session_id": "s1",
		"user_input": "hello",
		"hasLivechat": true,
		"incoming_action": [{"action": "resume", "data": {"step": 2}}],
		"metadata": {"internal": {"channelMetadata": {"channelMetadata": {"channel": "widget"}}}}
	}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "hello", req.UserInput)
	assert.True(t, req.HasLivechat)
	require.Len(t, req.IncomingAction, 1)
	assert.Equal(t, "resume", req.IncomingAction[0].ID())
	assert.Equal(t, map[string]any{"step": float64(2)}, req.IncomingAction[0].Data())

	ctrl, err := New(context.Background(), &req)
	require.NoError(t, err)
	assert.Equal(t, "widget", ctrl.Channel())
}
