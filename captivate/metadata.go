// ABOUTME: Nested channel metadata with a guarded free-form custom bag
// ABOUTME: Reserved keys (private, title, conversation_title) only change through dedicated operations

package captivate

// Reserved custom-bag keys. Checked once, in SetCustom.
const (
	customKeyPrivate           = "private"
	customKeyTitle             = "title"
	customKeyConversationTitle = "conversation_title"
)

var reservedCustomKeys = map[string]struct{}{
	customKeyPrivate:           {},
	customKeyTitle:             {},
	customKeyConversationTitle: {},
}

// User identifies the end user on the channel.
type User struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// ChannelMetadata holds channel info, user profile, and the free-form
// custom bag where the conversation title and arbitrary metadata live.
type ChannelMetadata struct {
	User                  *User          `json:"user,omitempty"`
	ChannelInfo           map[string]any `json:"channelMetadata"` // includes the "channel" identifier
	Custom                map[string]any `json:"custom"`
	ConversationCreatedAt string         `json:"conversationCreatedAt,omitempty"`
	ConversationUpdatedAt string         `json:"conversationUpdatedAt,omitempty"`
}

// InternalMetadata is the wire-level nesting around ChannelMetadata.
type InternalMetadata struct {
	ChannelMetadata ChannelMetadata `json:"channelMetadata"`
}

// Metadata is the top-level metadata document of both the inbound request
// and the outgoing response. It is constructed once from the request and
// mutated in place for the life of the controller.
type Metadata struct {
	Internal InternalMetadata `json:"internal"`
}

func (m *Metadata) channel() *ChannelMetadata {
	return &m.Internal.ChannelMetadata
}

func (m *Metadata) ensureCustom() map[string]any {
	cm := m.channel()
	if cm.Custom == nil {
		cm.Custom = map[string]any{}
	}
	return cm.Custom
}

// SetCustom upserts a key in the custom bag. Writes to reserved keys fail
// with ErrReservedKey.
func (m *Metadata) SetCustom(key string, value any) error {
	if _, reserved := reservedCustomKeys[key]; reserved {
		return ErrReservedKey
	}
	m.ensureCustom()[key] = value
	return nil
}

// GetCustom returns the value for key from the custom bag.
func (m *Metadata) GetCustom(key string) (any, bool) {
	v, ok := m.channel().Custom[key]
	return v, ok
}

// RemoveCustom deletes a key from the custom bag, reporting whether it
// was present.
func (m *Metadata) RemoveCustom(key string) bool {
	custom := m.channel().Custom
	if _, ok := custom[key]; !ok {
		return false
	}
	delete(custom, key)
	return true
}

// SetPrivate upserts a key in the private sub-bag. This is the dedicated
// escape hatch for the reserved "private" key.
func (m *Metadata) SetPrivate(key string, value any) {
	custom := m.ensureCustom()
	private, ok := custom[customKeyPrivate].(map[string]any)
	if !ok {
		private = map[string]any{}
		custom[customKeyPrivate] = private
	}
	private[key] = value
}

// SetConversationTitle writes the title in both its legacy structured form
// and the canonical plain-string form. Privileged path; the reserved-key
// check does not apply.
func (m *Metadata) SetConversationTitle(title string) {
	custom := m.ensureCustom()
	custom[customKeyTitle] = map[string]any{
		"type":  "title",
		"title": title,
	}
	custom[customKeyConversationTitle] = title
}

// ConversationTitle returns the conversation title. The canonical plain
// form is preferred; the legacy structured form is read for records
// written by older SDK versions.
func (m *Metadata) ConversationTitle() (string, bool) {
	custom := m.channel().Custom
	if title, ok := custom[customKeyConversationTitle].(string); ok {
		return title, true
	}
	if legacy, ok := custom[customKeyTitle].(map[string]any); ok {
		if title, ok := legacy["title"].(string); ok {
			return title, true
		}
	}
	return "", false
}

// Channel returns the channel identifier from the channel info mapping.
func (m *Metadata) Channel() string {
	ch, _ := m.channel().ChannelInfo["channel"].(string)
	return ch
}

// GetUser returns the user profile, if present.
func (m *Metadata) GetUser() *User {
	return m.channel().User
}

// SetUser replaces the user profile.
func (m *Metadata) SetUser(u *User) {
	m.channel().User = u
}

// CreatedAt returns the opaque conversation-created timestamp string.
func (m *Metadata) CreatedAt() string {
	return m.channel().ConversationCreatedAt
}

// UpdatedAt returns the opaque conversation-updated timestamp string.
func (m *Metadata) UpdatedAt() string {
	return m.channel().ConversationUpdatedAt
}
