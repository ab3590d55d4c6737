package asr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FFmpegSource captures microphone audio as WAV through ffmpeg. It is
// the default host capture; other platforms plug in their own
// AudioSource.
type FFmpegSource struct {
	Command     string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

func (s *FFmpegSource) Start(ctx context.Context) (AudioSession, error) {
	command := s.Command
	if command == "" {
		command = "ffmpeg"
	}
	format := s.InputFormat
	if format == "" {
		format = "pulse"
	}
	device := s.InputDevice
	if device == "" {
		device = "default"
	}
	rate := s.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	channels := s.Channels
	if channels <= 0 {
		channels = 1
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", format,
		"-i", device,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-f", "wav",
		"-",
	}

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// Give ffmpeg a moment to fail fast on a bad device.
	select {
	case err := <-waitErr:
		if err == nil {
			err = errors.New("ffmpeg exited before capture started")
		}
		return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:  stdout,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegSession struct {
	stdout  io.ReadCloser
	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}
		select {
		case err := <-s.waitErr:
			s.stopErr = ignoreExit(err)
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			s.stopErr = ignoreExit(<-s.waitErr)
		}
		_ = s.stdout.Close()
	})
	return s.stopErr
}

// ignoreExit drops the non-zero exit status ffmpeg reports when it is
// interrupted mid-capture.
func ignoreExit(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
