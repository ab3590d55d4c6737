package history

import (
	"fmt"
	"strings"
	"testing"
)

func TestLogAppendOrderAndClear(t *testing.T) {
	l := NewLog()

	l.AppendUser("hello")
	l.AppendAssistant("hi")
	l.AppendUser("my landlord kept my deposit")

	msgs := l.Messages()
	if len(msgs) != 3 {
		t.Fatalf("unexpected length: %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Fatalf("unexpected msgs[0]: %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hi" {
		t.Fatalf("unexpected msgs[1]: %+v", msgs[1])
	}
	if msgs[0].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Fatalf("message IDs must be unique and non-empty")
	}

	// Modifying the returned slice must not affect internal state.
	msgs[0].Content = "mutated"
	if l.Messages()[0].Content != "hello" {
		t.Fatalf("internal state mutated via returned slice")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("clear did not empty the log")
	}
	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("second clear changed state")
	}
}

func TestBuildContextWindow(t *testing.T) {
	var msgs []Message
	for i := 1; i <= 7; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: fmt.Sprintf("msg%d", i)})
	}

	ctx := BuildContext(msgs, 6)
	if !strings.HasPrefix(ctx, "Previous conversation:") {
		t.Fatalf("context missing header: %q", ctx)
	}
	if strings.Contains(ctx, "msg1") {
		t.Fatalf("context should exclude messages beyond the window: %q", ctx)
	}
	for i := 2; i <= 7; i++ {
		if !strings.Contains(ctx, fmt.Sprintf("msg%d", i)) {
			t.Fatalf("context missing msg%d: %q", i, ctx)
		}
	}
	if !strings.Contains(ctx, "User: msg7") {
		t.Fatalf("user messages must be labeled: %q", ctx)
	}
	if !strings.Contains(ctx, "Legal Expert: msg6") {
		t.Fatalf("assistant messages must be labeled: %q", ctx)
	}
}

func TestBuildContextEmptyHistory(t *testing.T) {
	if got := BuildContext(nil, 6); got != "" {
		t.Fatalf("empty history must yield empty context, got %q", got)
	}
}

func TestBuildContextDefaultWindow(t *testing.T) {
	var msgs []Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	ctx := BuildContext(msgs, 0)
	if strings.Contains(ctx, "m3\n") || strings.Contains(ctx, ": m3") {
		t.Fatalf("default window should keep only the last %d messages: %q", DefaultContextWindow, ctx)
	}
	if !strings.Contains(ctx, ": m4") {
		t.Fatalf("default window dropped too much: %q", ctx)
	}
}

func TestRenderTranscript(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "I want a divorce"},
		{Role: RoleAssistant, Content: "Tell me more"},
	}
	got := RenderTranscript(msgs)
	want := "User said: I want a divorce\nLegal Expert responded: Tell me more"
	if got != want {
		t.Fatalf("transcript mismatch:\ngot  %q\nwant %q", got, want)
	}
	if RenderTranscript(nil) != "" {
		t.Fatalf("empty history must render an empty transcript")
	}
}
