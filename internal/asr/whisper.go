package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrCaptureActive = errors.New("a capture session is already active")
	ErrNoCapture     = errors.New("no active capture session")
)

// Whisper transcribes captured audio through the OpenAI audio API.
// Audio is buffered locally for the whole clip; Whisper is not streamed.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	source   AudioSource

	mu      sync.Mutex
	current *capture
}

type capture struct {
	session AudioSession
	buf     bytes.Buffer
	done    chan struct{}
	copyErr error
}

func NewWhisper(apiKey, baseURL, model, language string, source AudioSource) *Whisper {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		language: language,
		source:   source,
	}
}

func (w *Whisper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		return ErrCaptureActive
	}

	session, err := w.source.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	c := &capture{session: session, done: make(chan struct{})}
	go func() {
		_, c.copyErr = io.Copy(&c.buf, session)
		close(c.done)
	}()
	w.current = c
	return nil
}

func (w *Whisper) StopAndTranscribe(ctx context.Context) (string, error) {
	w.mu.Lock()
	c := w.current
	w.current = nil
	w.mu.Unlock()

	if c == nil {
		return "", ErrNoCapture
	}

	if err := c.session.Stop(); err != nil {
		return "", fmt.Errorf("failed to stop audio capture: %w", err)
	}
	<-c.done
	if c.copyErr != nil && !errors.Is(c.copyErr, io.EOF) {
		return "", fmt.Errorf("audio capture failed: %w", c.copyErr)
	}
	if c.buf.Len() == 0 {
		return "", errors.New("no audio captured")
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   bytes.NewReader(c.buf.Bytes()),
		FilePath: "recording.wav",
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}

// TranscribeFile recognizes a complete audio file, used by front ends that
// receive whole voice notes instead of a live microphone stream.
func (w *Whisper) TranscribeFile(ctx context.Context, path string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return resp.Text, nil
}
