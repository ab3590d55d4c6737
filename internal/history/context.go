package history

import "strings"

// DefaultContextWindow bounds the prompt context to the last three
// exchanges so prompts do not grow with conversation length.
const DefaultContextWindow = 6

const contextHeader = "Previous conversation:"

const (
	userLabel      = "User"
	assistantLabel = "Legal Expert"
)

func label(r Role) string {
	if r == RoleAssistant {
		return assistantLabel
	}
	return userLabel
}

// BuildContext renders a bounded context block for the next model call.
// At most window messages (the most recent ones) are included. An empty
// history yields an empty string; the caller then sends only the latest
// utterance.
func BuildContext(msgs []Message, window int) string {
	if len(msgs) == 0 {
		return ""
	}
	if window <= 0 {
		window = DefaultContextWindow
	}
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, m := range msgs {
		b.WriteString("\n")
		b.WriteString(label(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// RenderTranscript renders the entire history as a plain-text transcript
// for filing analysis.
func RenderTranscript(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		if m.Role == RoleAssistant {
			b.WriteString("Legal Expert responded: ")
		} else {
			b.WriteString("User said: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
