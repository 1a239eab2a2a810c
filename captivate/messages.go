// ABOUTME: Closed tagged union of outgoing message variants with a type discriminant
// ABOUTME: Unknown or untyped payloads pass through as RawMessage

package captivate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/yuin/goldmark"
)

// Message discriminant values. File messages carry a MIME type in the
// discriminant position instead, which is why File is matched structurally
// during decoding.
const (
	MessageTypeText   = "text"
	MessageTypeButton = "button"
	MessageTypeTable  = "table"
	MessageTypeCard   = "card"
	MessageTypeCards  = "cards"
	MessageTypeHTML   = "html"
	MessageTypeFiles  = "files"
)

// Message is one variant of the outgoing message union.
type Message interface {
	messageVariant()
}

// TextMessage is a plain text message.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextMessage creates a text message.
func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: MessageTypeText, Text: text}
}

// ButtonMessage carries a button structure (title, options, ...).
type ButtonMessage struct {
	Type    string         `json:"type"`
	Buttons map[string]any `json:"buttons"`
}

// NewButtonMessage creates a button message.
func NewButtonMessage(buttons map[string]any) ButtonMessage {
	return ButtonMessage{Type: MessageTypeButton, Buttons: buttons}
}

// TableMessage carries an HTML-formatted table.
type TableMessage struct {
	Type  string `json:"type"`
	Table string `json:"table"`
}

// NewTableMessage creates a table message.
func NewTableMessage(table string) TableMessage {
	return TableMessage{Type: MessageTypeTable, Table: table}
}

// CardMessage is a single rich card.
type CardMessage struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Link        string `json:"link"`
}

// NewCardMessage creates a card message.
func NewCardMessage(text, description, imageURL, link string) CardMessage {
	return CardMessage{
		Type:        MessageTypeCard,
		Text:        text,
		Description: description,
		ImageURL:    imageURL,
		Link:        link,
	}
}

// CardCollectionMessage is an ordered set of cards.
type CardCollectionMessage struct {
	Type  string        `json:"type"`
	Cards []CardMessage `json:"cards"`
}

// NewCardCollectionMessage creates a card collection message.
func NewCardCollectionMessage(cards []CardMessage) CardCollectionMessage {
	return CardCollectionMessage{Type: MessageTypeCards, Cards: cards}
}

// HTMLMessage carries raw HTML content.
type HTMLMessage struct {
	Type string `json:"type"`
	HTML string `json:"html"`
}

// NewHTMLMessage creates an html message.
func NewHTMLMessage(html string) HTMLMessage {
	return HTMLMessage{Type: MessageTypeHTML, HTML: html}
}

// HTMLMessageFromMarkdown renders markdown to HTML and wraps it in an
// html message.
func HTMLMessageFromMarkdown(md string) (HTMLMessage, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return HTMLMessage{}, fmt.Errorf("converting markdown: %w", err)
	}
	return NewHTMLMessage(buf.String()), nil
}

// File is a single file attachment. Type holds the MIME type. At least
// one of URL or Filename must be set.
type File struct {
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// NewFile creates a file message. Fails unless at least one of url or
// filename is provided.
func NewFile(mimeType, url, filename string) (File, error) {
	f := File{Type: mimeType, URL: url, Filename: filename}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks that the file is addressable.
func (f File) Validate() error {
	if f.URL == "" && f.Filename == "" {
		return fmt.Errorf("file requires at least one of url or filename")
	}
	return nil
}

// FileCollectionMessage is an ordered set of files.
type FileCollectionMessage struct {
	Type  string `json:"type"`
	Files []File `json:"files"`
}

// NewFileCollectionMessage creates a files message.
func NewFileCollectionMessage(files []File) FileCollectionMessage {
	return FileCollectionMessage{Type: MessageTypeFiles, Files: files}
}

// RawMessage is an untyped passthrough mapping for channel-specific
// payloads the SDK does not model.
type RawMessage map[string]any

func (TextMessage) messageVariant()           {}
func (ButtonMessage) messageVariant()         {}
func (TableMessage) messageVariant()          {}
func (CardMessage) messageVariant()           {}
func (CardCollectionMessage) messageVariant() {}
func (HTMLMessage) messageVariant()           {}
func (File) messageVariant()                  {}
func (FileCollectionMessage) messageVariant() {}
func (RawMessage) messageVariant()            {}

// UnmarshalMessage decodes one message, dispatching on the "type"
// discriminant. Objects with an unknown discriminant decode as File when
// they are structurally a file (url or filename present), otherwise as
// RawMessage.
func UnmarshalMessage(data []byte) (Message, error) {
	var probe struct {
		Type     string `json:"type"`
		URL      string `json:"url"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}

	decode := func(m Message) (Message, error) {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("decoding %s message: %w", probe.Type, err)
		}
		return m, nil
	}

	switch probe.Type {
	case MessageTypeText:
		m, err := decode(&TextMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*TextMessage), nil
	case MessageTypeButton:
		m, err := decode(&ButtonMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*ButtonMessage), nil
	case MessageTypeTable:
		m, err := decode(&TableMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*TableMessage), nil
	case MessageTypeCard:
		m, err := decode(&CardMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*CardMessage), nil
	case MessageTypeCards:
		m, err := decode(&CardCollectionMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*CardCollectionMessage), nil
	case MessageTypeHTML:
		m, err := decode(&HTMLMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*HTMLMessage), nil
	case MessageTypeFiles:
		m, err := decode(&FileCollectionMessage{})
		if err != nil {
			return nil, err
		}
		return *m.(*FileCollectionMessage), nil
	}

	if probe.URL != "" || probe.Filename != "" {
		var f File
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding file message: %w", err)
		}
		return f, nil
	}

	var raw RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding raw message: %w", err)
	}
	return raw, nil
}
