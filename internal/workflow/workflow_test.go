package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"bolonyay/internal/filing"
	"bolonyay/internal/llm"
	"bolonyay/internal/recording"
	"bolonyay/internal/store"
)

// fakeLLM returns scripted responses in call order.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	reply := "ok"
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return llm.Response{Content: reply, Model: "fake"}, nil
}

// fakeTranscriber optionally blocks until release is closed.
type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	release chan struct{}
}

func (f *fakeTranscriber) Start(ctx context.Context) error { return nil }

func (f *fakeTranscriber) StopAndTranscribe(ctx context.Context) (string, error) {
	f.mu.Lock()
	release := f.release
	text, err := f.text, f.err
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return text, err
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

const analysisText = "CASE TYPE: Divorce\nCASE DETAILS:\nMutual consent case\nQUESTIONS:\n- What is your marriage date?\n- Where do you reside?"

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "wf.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestWorkflow(t *testing.T, ft *fakeTranscriber, fl *fakeLLM, db *gorm.DB) *Workflow {
	t.Helper()
	return New(Options{
		Language:      "en",
		DeviceID:      "device-test",
		RecordingTick: time.Millisecond,
		RecordingCap:  time.Second,
		Transcriber:   ft,
		Client:        fl,
		Gateway:       store.NewGateway(db),
	})
}

func TestRecordingToConversation(t *testing.T) {
	ft := &fakeTranscriber{text: "my landlord kept my deposit"}
	fl := &fakeLLM{replies: []string{"You may file a consumer complaint."}}
	w := newTestWorkflow(t, ft, fl, testDB(t))

	if err := w.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	w.StopRecording(context.Background())

	waitFor(t, time.Second, func() bool { return len(w.Snapshot().Messages) == 2 })
	msgs := w.Snapshot().Messages
	if msgs[0].Content != "my landlord kept my deposit" {
		t.Fatalf("user message = %q", msgs[0].Content)
	}
	if msgs[1].Content != "You may file a consumer complaint." {
		t.Fatalf("assistant message = %q", msgs[1].Content)
	}
}

func TestFullFilingFlow(t *testing.T) {
	ft := &fakeTranscriber{text: "I want a mutual consent divorce"}
	fl := &fakeLLM{replies: []string{"Tell me more about your situation.", analysisText}}
	db := testDB(t)
	w := newTestWorkflow(t, ft, fl, db)

	if err := w.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	w.StopRecording(context.Background())
	waitFor(t, time.Second, func() bool { return len(w.Snapshot().Messages) == 2 })

	if err := w.StartCaseFiling(context.Background()); err != nil {
		t.Fatalf("start filing: %v", err)
	}
	waitFor(t, time.Second, func() bool { return w.Snapshot().FilingState == filing.StateQuestionsReady })

	snap := w.Snapshot()
	if snap.Draft == nil || snap.Draft.CaseType != "Divorce" {
		t.Fatalf("draft = %+v", snap.Draft)
	}
	if len(snap.Draft.FilingQuestions) != 2 {
		t.Fatalf("questions = %v", snap.Draft.FilingQuestions)
	}

	w.SubmitResponse(1, "Pune")
	if w.Snapshot().FilingState != filing.StateCollectingInfo {
		t.Fatalf("state = %s", w.Snapshot().FilingState)
	}
	w.SubmitResponse(0, "12 March 2019")
	if w.Snapshot().FilingState != filing.StateReadyToFile {
		t.Fatalf("state = %s", w.Snapshot().FilingState)
	}

	caseNumber, err := w.FinalizeCase(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !strings.HasPrefix(caseNumber, "BN") {
		t.Fatalf("case number = %q", caseNumber)
	}
	if w.Snapshot().FilingState != filing.StateFiled {
		t.Fatalf("state = %s", w.Snapshot().FilingState)
	}

	g := store.NewGateway(db)
	waitFor(t, time.Second, func() bool {
		_, err := g.CaseByNumber(caseNumber)
		return err == nil
	})
	rec, err := g.CaseByNumber(caseNumber)
	if err != nil {
		t.Fatalf("case by number: %v", err)
	}
	if rec.CaseType != "Divorce" || rec.SessionID != w.SessionID() {
		t.Fatalf("persisted record mismatch: %+v", rec)
	}

	cases, err := w.Cases()
	if err != nil {
		t.Fatalf("cases: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("case list = %+v", cases)
	}
}

func TestStartFilingRequiresConversation(t *testing.T) {
	w := newTestWorkflow(t, &fakeTranscriber{}, &fakeLLM{}, testDB(t))
	if err := w.StartCaseFiling(context.Background()); !errors.Is(err, ErrEmptyConversation) {
		t.Fatalf("err = %v, want ErrEmptyConversation", err)
	}
}

func TestParseFailureDrivesFilingToError(t *testing.T) {
	ft := &fakeTranscriber{text: "something happened"}
	fl := &fakeLLM{replies: []string{"reply", "unstructured rambling with no markers"}}
	w := newTestWorkflow(t, ft, fl, testDB(t))

	if err := w.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	w.StopRecording(context.Background())
	waitFor(t, time.Second, func() bool { return len(w.Snapshot().Messages) == 2 })

	if err := w.StartCaseFiling(context.Background()); err != nil {
		t.Fatalf("start filing: %v", err)
	}
	waitFor(t, time.Second, func() bool { return w.Snapshot().FilingState == filing.StateError })
	if w.Snapshot().ErrorMessage == "" {
		t.Fatalf("error state must carry a message")
	}
	if _, err := w.FinalizeCase(context.Background()); err == nil {
		t.Fatalf("finalize from error state must fail")
	}
}

func TestResetDropsInFlightTranscription(t *testing.T) {
	ft := &fakeTranscriber{text: "stale utterance", release: make(chan struct{})}
	fl := &fakeLLM{}
	w := newTestWorkflow(t, ft, fl, testDB(t))

	if err := w.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	w.StopRecording(context.Background())
	firstSession := w.SessionID()

	w.Reset()
	close(ft.release)
	time.Sleep(20 * time.Millisecond)

	snap := w.Snapshot()
	if len(snap.Messages) != 0 {
		t.Fatalf("stale transcription appended messages: %+v", snap.Messages)
	}
	if snap.RecordingState != recording.StateIdle {
		t.Fatalf("recording state = %s", snap.RecordingState)
	}
	if snap.FilingState != filing.StateNotStarted {
		t.Fatalf("filing state = %s", snap.FilingState)
	}
	if w.SessionID() == firstSession {
		t.Fatalf("reset must start a fresh session")
	}
}

func TestResetRacingTranscriptionLeavesNoMessages(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 50; i++ {
		ft := &fakeTranscriber{text: "stale utterance", release: make(chan struct{})}
		w := newTestWorkflow(t, ft, &fakeLLM{}, db)

		if err := w.StartRecording(context.Background()); err != nil {
			t.Fatalf("start recording: %v", err)
		}
		w.StopRecording(context.Background())

		// Let the transcription result and the reset race each other.
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			close(ft.release)
		}()
		go func() {
			defer wg.Done()
			w.Reset()
		}()
		wg.Wait()
		time.Sleep(5 * time.Millisecond)

		snap := w.Snapshot()
		if len(snap.Messages) != 0 {
			t.Fatalf("iteration %d: message survived reset: %+v", i, snap.Messages)
		}
		if snap.RecordingState != recording.StateIdle {
			t.Fatalf("iteration %d: recording state = %s", i, snap.RecordingState)
		}
	}
}

func TestResetIdempotent(t *testing.T) {
	w := newTestWorkflow(t, &fakeTranscriber{}, &fakeLLM{}, testDB(t))
	w.Reset()
	first := w.Snapshot()
	w.Reset()
	second := w.Snapshot()
	if first.RecordingState != second.RecordingState || first.FilingState != second.FilingState {
		t.Fatalf("double reset diverged: %+v vs %+v", first, second)
	}
	if len(second.Messages) != 0 || second.ErrorMessage != "" {
		t.Fatalf("reset state not clean: %+v", second)
	}
}

func TestSubmitUtteranceDrivesConversation(t *testing.T) {
	fl := &fakeLLM{replies: []string{"You should gather the rent receipts."}}
	w := newTestWorkflow(t, &fakeTranscriber{}, fl, testDB(t))

	reply, err := w.SubmitUtterance(context.Background(), "my landlord will not return my deposit")
	if err != nil {
		t.Fatalf("submit utterance: %v", err)
	}
	if reply != "You should gather the rent receipts." {
		t.Fatalf("reply = %q", reply)
	}
	if len(w.Snapshot().Messages) != 2 {
		t.Fatalf("messages = %+v", w.Snapshot().Messages)
	}
}

func TestPersistenceFailureLeavesFiledState(t *testing.T) {
	ft := &fakeTranscriber{text: "I was cheated by a shop"}
	fl := &fakeLLM{replies: []string{"reply", "CASE TYPE: Consumer Complaint\nQUESTIONS:\n- What did you purchase from the shop?"}}
	db := testDB(t)
	w := newTestWorkflow(t, ft, fl, db)

	if err := w.StartRecording(context.Background()); err != nil {
		t.Fatalf("start recording: %v", err)
	}
	w.StopRecording(context.Background())
	waitFor(t, time.Second, func() bool { return len(w.Snapshot().Messages) == 2 })
	if err := w.StartCaseFiling(context.Background()); err != nil {
		t.Fatalf("start filing: %v", err)
	}
	waitFor(t, time.Second, func() bool { return w.Snapshot().FilingState == filing.StateQuestionsReady })
	w.SubmitResponse(0, "a refrigerator that never worked")

	// Break the case table so the durable write fails after the
	// optimistic transition.
	if err := db.Migrator().DropTable(&store.CaseRecord{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if _, err := w.FinalizeCase(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	waitFor(t, time.Second, func() bool { return w.Snapshot().ErrorMessage != "" })
	if w.Snapshot().FilingState != filing.StateFiled {
		t.Fatalf("filing state diverged from filed: %s", w.Snapshot().FilingState)
	}
	if _, err := w.ExportCase(); !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("export after failed persistence = %v, want ErrNotPersisted", err)
	}
}

func TestExportRequiresFiledState(t *testing.T) {
	w := newTestWorkflow(t, &fakeTranscriber{}, &fakeLLM{}, testDB(t))
	if _, err := w.ExportCase(); !errors.Is(err, ErrNotFiled) {
		t.Fatalf("export before filing = %v, want ErrNotFiled", err)
	}
}
