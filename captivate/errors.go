// ABOUTME: Sentinel errors for the captivate controller and its aggregates
// ABOUTME: All are fatal to the failing call, never to the process

package captivate

import "errors"

var (
	// ErrMissingSessionID is returned when a controller is constructed
	// without a session identifier.
	ErrMissingSessionID = errors.New("session_id is required")

	// ErrImmutableField is returned on any attempt to change session_id or
	// hasLivechat after construction.
	ErrImmutableField = errors.New("field cannot be modified after construction")

	// ErrReservedKey is returned when a generic custom-metadata write
	// targets a protected key. Callers should use the dedicated operation
	// (SetPrivate, SetConversationTitle) instead.
	ErrReservedKey = errors.New("reserved metadata key")

	// ErrConflictingPayload is returned when an action carries both legacy
	// value fields with different contents.
	ErrConflictingPayload = errors.New("payload and data must be identical during migration")

	// ErrMemoryDisabled is returned when LLM features are enabled without
	// memory mode.
	ErrMemoryDisabled = errors.New("memory mode is not enabled")

	// ErrRouterModeDisabled is returned by router-mode operations when
	// router mode is off.
	ErrRouterModeDisabled = errors.New("router mode is not enabled")

	// ErrAgentsAlreadySet is returned by a second SetAgentsList call.
	ErrAgentsAlreadySet = errors.New("agents list already set")

	// ErrNoResponse is returned by Deliver when no response has been set.
	ErrNoResponse = errors.New("response has not been set")
)
