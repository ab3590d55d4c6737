package asr

import (
	"context"
	"io"
)

// AudioSession is a live microphone capture.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioSource creates capture sessions. Implementations live in the host
// platform layer; tests supply fakes.
type AudioSource interface {
	Start(ctx context.Context) (AudioSession, error)
}

// Transcriber is the speech-to-text boundary consumed by the recording
// controller. Start begins capture; StopAndTranscribe ends it and returns
// the recognized text.
type Transcriber interface {
	Start(ctx context.Context) error
	StopAndTranscribe(ctx context.Context) (string, error)
}
