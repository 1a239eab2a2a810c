// Package captivate models one conversational exchange between a chat
// channel and a backend bot or agent.
//
// # Overview
//
// A Controller is constructed from a normalized inbound request and owns
// everything produced while handling it: the shared metadata document, the
// incoming actions, the outgoing Response aggregate, and (optionally) the
// durable conversation session.
//
//	ctrl, err := captivate.New(ctx, &req,
//	    captivate.WithMemory(store),
//	    captivate.WithSummarizer(llm),
//	    captivate.WithTitleGeneration(),
//	)
//
// # Response lifecycle
//
// The Response aggregate is built eagerly at construction and mirrors the
// controller's session identity, livechat flag, and metadata at all times.
// SetResponse finalizes the outgoing messages exactly once per controller;
// later calls log a warning and change nothing. Outgoing actions may be
// set before or after finalization.
//
//	ctrl.SetResponse(ctx, []captivate.Message{captivate.NewTextMessage("hi")})
//	body, err := ctrl.Deliver(ctx, "prod")
//
// # Immutability
//
// session_id and hasLivechat are fixed at construction. SetSessionID and
// SetHasLivechat exist only to reject: they always return
// ErrImmutableField.
//
// # Conversational memory
//
// With WithMemory, the controller loads or creates the session record
// (key "session:<id>"), appends the user turn, and persists. SetResponse
// appends the whole outgoing message sequence as one bot turn. A corrupt
// stored record fails construction; it is never silently replaced.
//
// Title generation and context extraction are best-effort enrichments:
// their failures are logged and degraded, never propagated.
//
// # Router mode
//
// EnableRouterMode unlocks SetAgentsList (one-shot), OutgoingActions, and
// IsEscalatingToAgentRouter for multi-agent escalation bookkeeping.
package captivate
