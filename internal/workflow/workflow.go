package workflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"bolonyay/internal/analysis"
	"bolonyay/internal/asr"
	"bolonyay/internal/export"
	"bolonyay/internal/filing"
	"bolonyay/internal/history"
	"bolonyay/internal/llm"
	"bolonyay/internal/recording"
	"bolonyay/internal/storage"
	"bolonyay/internal/store"
)

var (
	ErrEmptyConversation = errors.New("no conversation to analyze")
	ErrNotFiled          = errors.New("case has not been filed yet")
	ErrNotPersisted      = errors.New("case record has not been persisted yet")
	ErrSessionReset      = errors.New("session was reset")
)

// EventSink receives workflow notifications. Front ends subscribe to it
// instead of polling; a nil sink disables notifications.
type EventSink interface {
	RecordingStateChanged(state recording.State)
	RecordingTick(elapsed time.Duration, level float64)
	FilingStateChanged(state filing.State)
	MessageAppended(msg history.Message)
	WorkflowError(stage, message string)
}

type NopSink struct{}

func (NopSink) RecordingStateChanged(recording.State) {}

func (NopSink) RecordingTick(time.Duration, float64) {}

func (NopSink) FilingStateChanged(filing.State) {}

func (NopSink) MessageAppended(history.Message) {}

func (NopSink) WorkflowError(string, string) {}

// Options wires one conversation's collaborators.
type Options struct {
	Language       string
	DeviceID       string
	ContextWindow  int
	RecordingTick  time.Duration
	RecordingCap   time.Duration
	Transcriber    asr.Transcriber
	Client         llm.Client
	Interrogatives analysis.Interrogatives
	Gateway        *store.Gateway
	Exporter       export.Exporter
	Recorder       storage.Recorder
	Sink           EventSink
}

// Workflow composes the recording controller, conversation log, analysis
// engine, filing machine and persistence gateway into the end-to-end
// voice filing flow. One instance per conversation; all public
// operations are serialized through its mutex, and results of external
// calls that outlive a Reset are dropped via an epoch counter.
type Workflow struct {
	language      string
	deviceID      string
	contextWindow int

	log        *history.Log
	controller *recording.Controller
	engine     *analysis.Engine
	parser     *analysis.Parser
	machine    *filing.Machine
	gateway    *store.Gateway
	exporter   export.Exporter
	recorder   storage.Recorder
	sink       EventSink

	mu           sync.Mutex
	sessionID    string
	epoch        uint64
	pendingEpoch uint64
	caseNumber   string
	record       *store.CaseRecord
	user         *store.User
	errMsg       string
}

func New(opts Options) *Workflow {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = history.DefaultContextWindow
	}

	w := &Workflow{
		language:      opts.Language,
		deviceID:      opts.DeviceID,
		contextWindow: opts.ContextWindow,
		log:           history.NewLog(),
		engine:        analysis.NewEngine(opts.Client),
		parser:        analysis.NewParser(opts.Interrogatives),
		machine:       filing.New(),
		gateway:       opts.Gateway,
		exporter:      opts.Exporter,
		recorder:      opts.Recorder,
		sink:          opts.Sink,
		sessionID:     store.NewSessionID(),
	}
	w.controller = recording.NewController(
		opts.Transcriber,
		recordingSink{w},
		opts.RecordingTick,
		opts.RecordingCap,
		w.handleTranscript,
	)
	return w
}

// recordingSink forwards controller events to the workflow's sink.
type recordingSink struct{ w *Workflow }

func (s recordingSink) RecordingStateChanged(state recording.State) {
	s.w.sink.RecordingStateChanged(state)
}

func (s recordingSink) RecordingTick(elapsed time.Duration, level float64) {
	s.w.sink.RecordingTick(elapsed, level)
}

func (w *Workflow) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// StartRecording begins a voice recording. No-op while one is in flight.
func (w *Workflow) StartRecording(ctx context.Context) error {
	w.mu.Lock()
	w.pendingEpoch = w.epoch
	w.mu.Unlock()
	return w.controller.Start(ctx)
}

// StopRecording ends the recording; the transcript arrives through the
// controller callback once recognition finishes.
func (w *Workflow) StopRecording(ctx context.Context) {
	w.controller.Stop(ctx)
}

func (w *Workflow) handleTranscript(_ uint64, text string, err error) {
	if err != nil {
		w.setError("transcription", err)
		return
	}

	// Check and append under one lock so a concurrent Reset either beats
	// the append entirely or clears the log after it.
	w.mu.Lock()
	if w.epoch != w.pendingEpoch {
		w.mu.Unlock()
		return
	}
	epoch := w.epoch
	msg := w.log.AppendUser(text)
	w.mu.Unlock()

	w.sink.MessageAppended(msg)
	go w.generateReply(epoch, text)
}

func (w *Workflow) generateReply(epoch uint64, utterance string) {
	msgs := w.log.Messages()
	// The utterance is already appended; the context covers what came
	// before it.
	if n := len(msgs); n > 0 {
		msgs = msgs[:n-1]
	}
	contextBlock := history.BuildContext(msgs, w.contextWindow)

	reply, err := w.engine.Reply(context.Background(), contextBlock, utterance, w.language)
	if err != nil {
		if !w.stale(epoch) {
			w.setError("analysis", err)
		}
		return
	}

	msg, ok := w.appendAssistant(epoch, reply)
	if !ok {
		return
	}
	w.sink.MessageAppended(msg)
	w.audit(utterance, reply)
}

// appendAssistant appends a reply unless the session was reset since
// epoch was captured.
func (w *Workflow) appendAssistant(epoch uint64, reply string) (history.Message, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		return history.Message{}, false
	}
	return w.log.AppendAssistant(reply), true
}

// SubmitUtterance feeds an externally transcribed utterance (for example
// a chat voice note) through the same conversation path and returns the
// assistant's reply.
func (w *Workflow) SubmitUtterance(ctx context.Context, text string) (string, error) {
	w.mu.Lock()
	epoch := w.epoch
	contextBlock := history.BuildContext(w.log.Messages(), w.contextWindow)
	msg := w.log.AppendUser(text)
	w.mu.Unlock()
	w.sink.MessageAppended(msg)

	reply, err := w.engine.Reply(ctx, contextBlock, text, w.language)
	if err != nil {
		if w.stale(epoch) {
			return "", ErrSessionReset
		}
		w.setError("analysis", err)
		return "", err
	}

	out, ok := w.appendAssistant(epoch, reply)
	if !ok {
		return "", ErrSessionReset
	}
	w.sink.MessageAppended(out)
	w.audit(text, reply)
	return reply, nil
}

// StartCaseFiling runs filing analysis over the whole conversation and,
// on success, opens the question loop.
func (w *Workflow) StartCaseFiling(ctx context.Context) error {
	if w.log.Len() == 0 {
		return ErrEmptyConversation
	}
	if err := w.machine.Begin(); err != nil {
		return err
	}
	w.sink.FilingStateChanged(filing.StateAnalyzing)

	w.mu.Lock()
	epoch := w.epoch
	w.mu.Unlock()

	go w.runFilingAnalysis(epoch)
	return nil
}

func (w *Workflow) runFilingAnalysis(epoch uint64) {
	transcript := history.RenderTranscript(w.log.Messages())

	text, err := w.engine.AnalyzeForFiling(context.Background(), transcript, w.language)
	if w.stale(epoch) {
		return
	}
	if err != nil {
		w.machine.Fail(err.Error())
		w.setError("analysis", err)
		w.sink.FilingStateChanged(filing.StateError)
		return
	}

	draft, err := w.parser.Parse(text)
	if err != nil {
		w.machine.Fail(err.Error())
		w.setError("parse", err)
		w.sink.FilingStateChanged(filing.StateError)
		return
	}

	if err := w.machine.SetDraft(draft); err != nil {
		return
	}
	w.sink.FilingStateChanged(filing.StateQuestionsReady)
}

// SubmitResponse stores an answer to a filing question.
func (w *Workflow) SubmitResponse(index int, text string) {
	w.machine.SubmitResponse(index, text)
	w.sink.FilingStateChanged(w.machine.State())
}

// FinalizeCase transitions to filed and persists the record in the
// background. The filed transition is optimistic: a persistence failure
// is surfaced as a workflow error while the in-memory state stays filed.
func (w *Workflow) FinalizeCase(ctx context.Context) (string, error) {
	if err := w.machine.Finalize(); err != nil {
		return "", err
	}
	w.sink.FilingStateChanged(filing.StateFiled)

	w.mu.Lock()
	epoch := w.epoch
	w.caseNumber = store.GenerateCaseNumber()
	caseNumber := w.caseNumber
	sessionID := w.sessionID
	w.mu.Unlock()

	go w.persist(epoch, sessionID, caseNumber)
	return caseNumber, nil
}

func (w *Workflow) persist(epoch uint64, sessionID, caseNumber string) {
	if w.gateway == nil {
		return
	}

	user, err := w.gateway.EnsureUser(w.deviceID, w.language)
	if err != nil {
		w.setError("persistence", err)
		return
	}

	msgs := w.log.Messages()
	if _, err := w.gateway.SaveConversationSession(user.ID, sessionID, caseNumber, w.language, msgs); err != nil {
		w.setError("persistence", err)
		return
	}

	draft := w.machine.Draft()
	if draft == nil {
		w.setError("persistence", errors.New("draft missing at persistence time"))
		return
	}

	rec, err := w.gateway.SaveCase(store.CaseInput{
		UserID:              user.ID,
		SessionID:           sessionID,
		CaseNumber:          caseNumber,
		CaseType:            draft.CaseType,
		CaseDetails:         draft.CaseDetails,
		ConversationSummary: history.RenderTranscript(msgs),
		FilingQuestions:     draft.FilingQuestions,
		UserResponses:       draft.UserResponses,
		Language:            w.language,
	})
	if err != nil {
		w.setError("persistence", err)
		return
	}

	w.mu.Lock()
	if w.epoch == epoch {
		w.record = rec
		w.user = user
	}
	w.mu.Unlock()
}

// ExportCase renders the filed, persisted case into a shareable
// artifact. It is rejected before the filed state.
func (w *Workflow) ExportCase() (export.Artifact, error) {
	if w.machine.State() != filing.StateFiled {
		return export.Artifact{}, ErrNotFiled
	}

	w.mu.Lock()
	rec, user := w.record, w.user
	w.mu.Unlock()
	if rec == nil {
		return export.Artifact{}, ErrNotPersisted
	}
	if w.exporter == nil {
		return export.Artifact{}, errors.New("no exporter configured")
	}
	return w.exporter.Export(rec, user)
}

// Cases lists the device user's filed cases.
func (w *Workflow) Cases() ([]store.CaseRecord, error) {
	if w.gateway == nil {
		return nil, nil
	}
	user, err := w.gateway.EnsureUser(w.deviceID, w.language)
	if err != nil {
		return nil, err
	}
	return w.gateway.CasesForUser(user.ID)
}

// Reset abandons everything in memory and starts a fresh session.
// Results of still-running external calls are dropped when they arrive.
// The epoch advances before anything is cleared: an in-flight result
// either lands before this point and is wiped with the rest, or fails
// the epoch check and never lands.
func (w *Workflow) Reset() {
	w.mu.Lock()
	w.epoch++
	w.sessionID = store.NewSessionID()
	w.caseNumber = ""
	w.record = nil
	w.user = nil
	w.errMsg = ""
	w.mu.Unlock()

	w.controller.Reset()
	w.machine.Reset()
	w.log.Clear()

	w.sink.FilingStateChanged(filing.StateNotStarted)
}

// Status is a point-in-time snapshot for polling front ends.
type Status struct {
	SessionID      string            `json:"session_id"`
	Language       string            `json:"language"`
	RecordingState recording.State   `json:"recording_state"`
	FilingState    filing.State      `json:"filing_state"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	Messages       []history.Message `json:"messages"`
	Draft          *analysis.Draft   `json:"draft,omitempty"`
	CaseNumber     string            `json:"case_number,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
}

func (w *Workflow) Snapshot() Status {
	w.mu.Lock()
	sessionID := w.sessionID
	caseNumber := w.caseNumber
	errMsg := w.errMsg
	w.mu.Unlock()

	if errMsg == "" {
		errMsg = w.machine.ErrorMessage()
	}
	if errMsg == "" {
		errMsg = w.controller.ErrorMessage()
	}

	return Status{
		SessionID:      sessionID,
		Language:       w.language,
		RecordingState: w.controller.State(),
		FilingState:    w.machine.State(),
		ElapsedSeconds: w.controller.Elapsed().Seconds(),
		Messages:       w.log.Messages(),
		Draft:          w.machine.Draft(),
		CaseNumber:     caseNumber,
		ErrorMessage:   errMsg,
	}
}

func (w *Workflow) stale(epoch uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.epoch != epoch
}

func (w *Workflow) setError(stage string, err error) {
	w.mu.Lock()
	w.errMsg = err.Error()
	w.mu.Unlock()
	log.Printf("workflow %s failed: %v", stage, err)
	w.sink.WorkflowError(stage, err.Error())
}

func (w *Workflow) audit(userMessage, assistantResponse string) {
	if w.recorder == nil {
		return
	}
	ev := storage.Event{
		Timestamp:         time.Now().UTC(),
		SessionID:         w.SessionID(),
		Language:          w.language,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
	}
	if err := w.recorder.AppendInteraction(ev); err != nil {
		log.Printf("failed to record exchange: %v", err)
	}
}
