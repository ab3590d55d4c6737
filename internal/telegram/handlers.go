package telegram

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bolonyay/internal/filing"
	"bolonyay/internal/workflow"
)

const welcomeText = "Namaste! Describe your legal problem with a voice note or a text message. " +
	"When you are ready, send /file to start filing a case."

func (b *Bot) handleCommand(ctx context.Context, wf *workflow.Workflow, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.send(msg.Chat.ID, welcomeText)
	case "reset":
		wf.Reset()
		b.send(msg.Chat.ID, "Conversation cleared. You can start again.")
	case "file":
		b.startFiling(ctx, wf, msg.Chat.ID)
	case "finalize":
		b.finalize(ctx, wf, msg.Chat.ID)
	case "status":
		b.send(msg.Chat.ID, formatStatus(wf.Snapshot()))
	default:
		b.send(msg.Chat.ID, "Unknown command. Use /file, /finalize, /status or /reset.")
	}
}

func (b *Bot) startFiling(ctx context.Context, wf *workflow.Workflow, chatID int64) {
	if err := wf.StartCaseFiling(ctx); err != nil {
		b.send(chatID, fmt.Sprintf("Cannot start filing: %v", err))
		return
	}
	b.send(chatID, "Analyzing your conversation to prepare the filing...")

	go func() {
		snap, ok := waitForFiling(wf, 60*time.Second)
		if !ok {
			b.send(chatID, "The analysis is taking too long. Please try /file again.")
			return
		}
		if snap.FilingState == filing.StateError {
			b.send(chatID, "Analysis failed: "+snap.ErrorMessage+"\nYou can retry with /file after /reset.")
			return
		}
		b.send(chatID, formatQuestions(snap))
	}()
}

func (b *Bot) finalize(ctx context.Context, wf *workflow.Workflow, chatID int64) {
	caseNumber, err := wf.FinalizeCase(ctx)
	if err != nil {
		b.send(chatID, fmt.Sprintf("Cannot finalize: %v", err))
		return
	}
	b.send(chatID, fmt.Sprintf("Your case has been filed. Case number: %s", caseNumber))
	log.Printf("case %s filed via telegram chat %d", caseNumber, chatID)
}

// waitForFiling polls until analysis leaves the analyzing state.
func waitForFiling(wf *workflow.Workflow, timeout time.Duration) (workflow.Status, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := wf.Snapshot()
		if snap.FilingState != filing.StateAnalyzing {
			return snap, true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return workflow.Status{}, false
}

// nextUnanswered returns the first blank question slot while the filing
// question loop is open.
func nextUnanswered(snap workflow.Status) (int, string, bool) {
	switch snap.FilingState {
	case filing.StateQuestionsReady, filing.StateCollectingInfo:
	default:
		return 0, "", false
	}
	if snap.Draft == nil {
		return 0, "", false
	}
	for i, r := range snap.Draft.UserResponses {
		if strings.TrimSpace(r) == "" {
			return i, snap.Draft.FilingQuestions[i], true
		}
	}
	return 0, "", false
}

var indexedAnswerRe = regexp.MustCompile(`^\s*(\d+)\s*[:.)]\s*(\S[\s\S]*)$`)

// indexedAnswer matches "<number>: <text>" replies while the question
// loop is open, including readyToFile, so an answer can be revised any
// time before /finalize.
func indexedAnswer(snap workflow.Status, text string) (int, string, bool) {
	switch snap.FilingState {
	case filing.StateQuestionsReady, filing.StateCollectingInfo, filing.StateReadyToFile:
	default:
		return 0, "", false
	}
	if snap.Draft == nil {
		return 0, "", false
	}
	m := indexedAnswerRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > len(snap.Draft.FilingQuestions) {
		return 0, "", false
	}
	return n - 1, strings.TrimSpace(m[2]), true
}

func answerProgress(snap workflow.Status) string {
	if idx, q, ok := nextUnanswered(snap); ok {
		return fmt.Sprintf("Noted. Question %d: %s", idx+1, q)
	}
	return "All questions answered. Send /finalize to file your case, " +
		"or reply \"<number>: <new answer>\" to revise one."
}

func formatQuestions(snap workflow.Status) string {
	if snap.Draft == nil {
		return "No questions available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Case type: %s\n", snap.Draft.CaseType)
	if snap.Draft.CaseDetails != "" {
		fmt.Fprintf(&b, "Details: %s\n", snap.Draft.CaseDetails)
	}
	b.WriteString("\nPlease answer these questions one message at a time:\n")
	for i, q := range snap.Draft.FilingQuestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}

func formatStatus(snap workflow.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Filing: %s\n", snap.FilingState)
	fmt.Fprintf(&b, "Messages: %d\n", len(snap.Messages))
	if snap.CaseNumber != "" {
		fmt.Fprintf(&b, "Case number: %s\n", snap.CaseNumber)
	}
	if snap.ErrorMessage != "" {
		fmt.Fprintf(&b, "Last error: %s\n", snap.ErrorMessage)
	}
	return b.String()
}
