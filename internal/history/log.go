package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one utterance in a conversation. Immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the append-only conversation history for one session.
// Messages are never edited or removed; Clear drops the whole history.
type Log struct {
	mu   sync.RWMutex
	msgs []Message
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) AppendUser(content string) Message {
	return l.append(RoleUser, content)
}

func (l *Log) AppendAssistant(content string) Message {
	return l.append(RoleAssistant, content)
}

func (l *Log) append(role Role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
	return msg
}

// Messages returns a copy of the history in append order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.msgs = nil
	l.mu.Unlock()
}
