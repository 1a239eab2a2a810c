// ABOUTME: Summarizer capability port with prompt builders and tolerant JSON parsing
// ABOUTME: Used for best-effort conversation title generation and context extraction

package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Summarizer is the external text-to-structured-JSON capability. The returned
// content is expected, but not guaranteed, to be a JSON object; callers must
// handle parse failure via ParseObject.
type Summarizer interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to the Summarizer interface. Useful for
// scripted responses in tests and simple wrappers around HTTP model APIs.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// TitlePrompt builds the fixed prompt used for conversation title generation.
// The summarizer is instructed to return a JSON object with the key "title".
func TitlePrompt(userInput string) string {
	return fmt.Sprintf(`You are an Agent tasked to generate a concise title for a conversation based on the user's message. The title should be brief and short, with a maximum of 5 words. Return the title as a JSON object with the key "title". For example:

{"title": "Concise Conversation Title"}

Message: %s`, userInput)
}

// ContextPrompt builds the prompt used for long-term context extraction.
// lastBotTurn may be empty when the conversation has no bot turns yet.
func ContextPrompt(lastBotTurn, userInput string) string {
	var b strings.Builder
	b.WriteString("You are an Agent tasked to extract durable, user-relevant facts from a conversation. ")
	b.WriteString("Return a flat JSON object whose keys are lower-case snake_case strings and whose values are the extracted facts. ")
	b.WriteString("Include only information about the user worth remembering across conversations. Return {} if there is nothing to extract.\n\n")
	if lastBotTurn != "" {
		fmt.Fprintf(&b, "Previous bot message: %s\n", lastBotTurn)
	}
	fmt.Fprintf(&b, "User message: %s", userInput)
	return b.String()
}

// ParseObject extracts a JSON object from summarizer output. Model responses
// often wrap the object in markdown code fences or surrounding prose, so the
// content is trimmed to the outermost braces before decoding.
func ParseObject(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in summarizer output")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("parsing summarizer output: %w", err)
	}
	return parsed, nil
}
