// ABOUTME: Outgoing response aggregate kept in lockstep with its controller
// ABOUTME: Session identity, livechat flag, and metadata mirror the controller and are not settable here

package captivate

import (
	"encoding/json"
	"slices"
)

// Well-known outgoing action identifiers.
const (
	ActionEscalateToHuman       = "escalate_to_human"
	ActionEscalateToAgentRouter = "escalate_to_agent_router"
	ActionEscalateToAgent       = "escalate_to_agent"
)

// Response is the outgoing payload delivered to the channel endpoint.
// Session identity, the livechat flag, and metadata always mirror the
// owning controller; only messages and outgoing actions are settable.
type Response struct {
	messages        []Message
	sessionID       string
	metadata        *Metadata
	outgoingActions []*Action
	hasLivechat     bool
}

func newResponse(c *Controller) *Response {
	return &Response{
		sessionID:   c.sessionID,
		metadata:    c.metadata,
		hasLivechat: c.hasLivechat,
	}
}

// SessionID returns the mirrored session identifier.
func (r *Response) SessionID() string {
	return r.sessionID
}

// HasLivechat returns the mirrored livechat flag.
func (r *Response) HasLivechat() bool {
	return r.hasLivechat
}

// Metadata returns the shared metadata document.
func (r *Response) Metadata() *Metadata {
	return r.metadata
}

// Messages returns a copy of the message sequence.
func (r *Response) Messages() []Message {
	return slices.Clone(r.messages)
}

// SetMessages replaces the message sequence.
func (r *Response) SetMessages(messages []Message) {
	r.messages = slices.Clone(messages)
}

// OutgoingActions returns a copy of the outgoing action sequence.
func (r *Response) OutgoingActions() []*Action {
	return slices.Clone(r.outgoingActions)
}

// SetOutgoingActions replaces the outgoing action sequence.
func (r *Response) SetOutgoingActions(actions []*Action) {
	r.outgoingActions = slices.Clone(actions)
}

// EscalateToHuman sets the outgoing actions to the single human-escalation
// action.
func (r *Response) EscalateToHuman() {
	r.outgoingActions = []*Action{NewAction(ActionEscalateToHuman, nil)}
}

// EscalateToAgentRouter sets the outgoing actions to the single
// router-escalation action. Absent fields are omitted from the payload.
func (r *Response) EscalateToAgentRouter(reason, intent string, recommendedAgents []string) {
	payload := map[string]any{}
	if reason != "" {
		payload["reason"] = reason
	}
	if intent != "" {
		payload["intent"] = intent
	}
	if len(recommendedAgents) > 0 {
		payload["recommended_agents"] = recommendedAgents
	}
	if len(payload) == 0 {
		payload = nil
	}
	r.outgoingActions = []*Action{NewAction(ActionEscalateToAgentRouter, payload)}
}

// EscalateToAgent sets the outgoing actions to the single direct-agent
// escalation action. Absent fields are omitted from the payload.
func (r *Response) EscalateToAgent(agentID, reason string) {
	payload := map[string]any{"agent_id": agentID}
	if reason != "" {
		payload["reason"] = reason
	}
	r.outgoingActions = []*Action{NewAction(ActionEscalateToAgent, payload)}
}

type responseWire struct {
	Response       []Message `json:"response"`
	SessionID      string    `json:"session_id"`
	Metadata       *Metadata `json:"metadata"`
	OutgoingAction []*Action `json:"outgoing_action"`
	HasLivechat    bool      `json:"hasLivechat"`
}

// MarshalJSON serializes the full aggregate snapshot: the wire payload
// delivered to the channel endpoint.
func (r *Response) MarshalJSON() ([]byte, error) {
	messages := r.messages
	if messages == nil {
		messages = []Message{}
	}
	return json.Marshal(responseWire{
		Response:       messages,
		SessionID:      r.sessionID,
		Metadata:       r.metadata,
		OutgoingAction: r.outgoingActions,
		HasLivechat:    r.hasLivechat,
	})
}
