package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bolonyay/internal/auth"
	"bolonyay/internal/workflow"
)

// FileTranscriber recognizes a complete voice-note file.
type FileTranscriber interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// WorkflowFactory builds one filing workflow per chat.
type WorkflowFactory func(deviceID string) *workflow.Workflow

// Bot is the Telegram front end: voice notes and text messages drive the
// same filing workflow the HTTP API exposes.
type Bot struct {
	api        *tgbotapi.BotAPI
	authSvc    *auth.Service
	factory    WorkflowFactory
	transcribe FileTranscriber

	mu       sync.Mutex
	sessions map[int64]*workflow.Workflow
}

func New(botToken string, authSvc *auth.Service, factory WorkflowFactory, transcribe FileTranscriber) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:        api,
		authSvc:    authSvc,
		factory:    factory,
		transcribe: transcribe,
		sessions:   make(map[int64]*workflow.Workflow),
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.authSvc != nil && !b.authSvc.IsAllowed(msg.From.ID) {
		log.Printf("unauthorized access attempt by user %d (@%s)", msg.From.ID, msg.From.UserName)
		b.send(msg.Chat.ID, "You are not yet authorized to use this bot.")
		return
	}

	wf := b.workflowFor(msg.From.ID)

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, wf, msg)
	case msg.Voice != nil:
		b.handleVoice(ctx, wf, msg, msg.Voice.FileID)
	case msg.Audio != nil:
		b.handleVoice(ctx, wf, msg, msg.Audio.FileID)
	case msg.Text != "":
		b.handleText(ctx, wf, msg)
	}
}

func (b *Bot) workflowFor(userID int64) *workflow.Workflow {
	b.mu.Lock()
	defer b.mu.Unlock()
	wf, ok := b.sessions[userID]
	if !ok {
		wf = b.factory(fmt.Sprintf("tg-%d", userID))
		b.sessions[userID] = wf
	}
	return wf
}

func (b *Bot) handleVoice(ctx context.Context, wf *workflow.Workflow, msg *tgbotapi.Message, fileID string) {
	path, err := b.downloadFile(fileID)
	if err != nil {
		log.Printf("failed to download voice note: %v", err)
		b.send(msg.Chat.ID, "I could not download your voice message. Please try again.")
		return
	}
	defer os.Remove(path)

	text, err := b.transcribe.TranscribeFile(ctx, path)
	if err != nil {
		log.Printf("failed to transcribe voice note: %v", err)
		b.send(msg.Chat.ID, "I could not understand the recording. Please try again.")
		return
	}

	b.routeUtterance(ctx, wf, msg.Chat.ID, text)
}

func (b *Bot) handleText(ctx context.Context, wf *workflow.Workflow, msg *tgbotapi.Message) {
	b.routeUtterance(ctx, wf, msg.Chat.ID, msg.Text)
}

// routeUtterance decides whether the utterance revises an indexed answer,
// answers the next pending filing question, or continues the legal
// conversation.
func (b *Bot) routeUtterance(ctx context.Context, wf *workflow.Workflow, chatID int64, text string) {
	snap := wf.Snapshot()
	if idx, answer, ok := indexedAnswer(snap, text); ok {
		wf.SubmitResponse(idx, answer)
		b.send(chatID, answerProgress(wf.Snapshot()))
		return
	}
	if idx, _, ok := nextUnanswered(snap); ok {
		wf.SubmitResponse(idx, text)
		b.send(chatID, answerProgress(wf.Snapshot()))
		return
	}

	reply, err := wf.SubmitUtterance(ctx, text)
	if err != nil {
		log.Printf("failed to generate reply: %v", err)
		b.send(chatID, "Sorry, something went wrong. Please try again.")
		return
	}
	b.send(chatID, reply)
}

func (b *Bot) downloadFile(fileID string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "voice-*"+filepath.Ext(url))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), nil
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
