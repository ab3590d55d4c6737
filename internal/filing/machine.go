package filing

import (
	"errors"
	"strings"
	"sync"

	"bolonyay/internal/analysis"
)

type State string

const (
	StateNotStarted     State = "notStarted"
	StateAnalyzing      State = "analyzing"
	StateQuestionsReady State = "questionsReady"
	StateCollectingInfo State = "collectingInfo"
	StateReadyToFile    State = "readyToFile"
	StateFiled          State = "filed"
	StateError          State = "error"
)

var (
	ErrAlreadyStarted = errors.New("filing already in progress")
	ErrNotAnalyzing   = errors.New("no filing analysis in progress")
	ErrNotReady       = errors.New("filing is not ready to finalize")
	ErrAlreadyFiled   = errors.New("case has already been filed")
)

// Machine owns the filing lifecycle for one conversation: analysis,
// question answering, completeness, submission. Transitions are
// one-directional except for Reset.
type Machine struct {
	mu     sync.Mutex
	state  State
	draft  *analysis.Draft
	errMsg string
}

func New() *Machine {
	return &Machine{state: StateNotStarted}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) ErrorMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Draft returns a copy of the current draft, or nil before analysis.
func (m *Machine) Draft() *analysis.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft.Clone()
}

// Begin starts filing analysis. Only a fresh machine can begin; error and
// filed are terminal until Reset.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	m.state = StateAnalyzing
	return nil
}

// SetDraft installs a successfully parsed draft and opens the question
// loop.
func (m *Machine) SetDraft(d *analysis.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAnalyzing {
		return ErrNotAnalyzing
	}
	m.draft = d.Clone()
	m.state = StateQuestionsReady
	return nil
}

// SubmitResponse stores a trimmed answer at index and recomputes
// completeness. Out-of-bounds indexes are ignored, as are submissions
// outside the question loop. Answers may arrive and be edited in any
// order; readyToFile is entered exactly when every slot is non-blank.
func (m *Machine) SubmitResponse(index int, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateQuestionsReady, StateCollectingInfo, StateReadyToFile:
	default:
		return
	}
	if m.draft == nil || index < 0 || index >= len(m.draft.UserResponses) {
		return
	}

	m.draft.UserResponses[index] = strings.TrimSpace(text)
	if m.draft.Answered() {
		m.state = StateReadyToFile
	} else {
		m.state = StateCollectingInfo
	}
}

// Finalize marks the draft as filed. The durable write happens after this
// transition; persistence failure is surfaced separately and does not
// move the machine out of filed.
func (m *Machine) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFiled {
		return ErrAlreadyFiled
	}
	if m.state != StateReadyToFile {
		return ErrNotReady
	}
	m.state = StateFiled
	return nil
}

// Fail drives the machine to its terminal error state with a
// human-readable reason.
func (m *Machine) Fail(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateError
	m.errMsg = msg
}

// Reset returns the machine to its initial state and clears the draft.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateNotStarted
	m.draft = nil
	m.errMsg = ""
}
