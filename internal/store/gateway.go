package store

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bolonyay/internal/history"
)

// Gateway is the persistence boundary for users, conversation sessions
// and case records. Session and case writes are sequential, not
// transactional: a session can be persisted while the case write fails.
type Gateway struct {
	db *gorm.DB
}

func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

// NewSessionID generates the opaque token correlating all records
// produced by one conversation.
func NewSessionID() string {
	return uuid.NewString()
}

// GenerateCaseNumber builds "BN" + year + a random 6-digit suffix. No
// local uniqueness check; the case_number unique index rejects the rare
// collision at save time.
func GenerateCaseNumber() string {
	return fmt.Sprintf("BN%d%06d", time.Now().Year(), rand.Intn(1000000))
}

// EnsureUser is an idempotent get-or-create keyed by device ID.
func (g *Gateway) EnsureUser(deviceID, language string) (*User, error) {
	user := &User{}
	err := g.db.Where(&User{DeviceID: deviceID}).
		Attrs(&User{Language: language}).
		FirstOrCreate(user).Error
	if err != nil {
		return nil, fmt.Errorf("store: ensure user %s: %w", deviceID, err)
	}
	return user, nil
}

// SaveConversationSession persists the transcript of one conversation.
func (g *Gateway) SaveConversationSession(userID, sessionID, caseNumber, language string, msgs []history.Message) (*ConversationSession, error) {
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("store: encode messages: %w", err)
	}
	session := &ConversationSession{
		SessionID:  sessionID,
		UserID:     userID,
		CaseNumber: caseNumber,
		Language:   language,
		Messages:   string(encoded),
	}
	if err := g.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("store: save session %s: %w", sessionID, err)
	}
	return session, nil
}

// CaseInput carries everything needed to create a case record.
type CaseInput struct {
	UserID              string
	SessionID           string
	CaseNumber          string
	CaseType            string
	CaseDetails         string
	ConversationSummary string
	FilingQuestions     []string
	UserResponses       []string
	Language            string
}

// SaveCase creates the durable case record. Called at most once per
// finalized draft.
func (g *Gateway) SaveCase(in CaseInput) (*CaseRecord, error) {
	questions, err := json.Marshal(in.FilingQuestions)
	if err != nil {
		return nil, fmt.Errorf("store: encode questions: %w", err)
	}
	responses, err := json.Marshal(in.UserResponses)
	if err != nil {
		return nil, fmt.Errorf("store: encode responses: %w", err)
	}
	rec := &CaseRecord{
		CaseNumber:          in.CaseNumber,
		UserID:              in.UserID,
		SessionID:           in.SessionID,
		CaseType:            in.CaseType,
		CaseDetails:         in.CaseDetails,
		ConversationSummary: in.ConversationSummary,
		FilingQuestions:     string(questions),
		UserResponses:       string(responses),
		Status:              "filed",
		Language:            in.Language,
	}
	if err := g.db.Create(rec).Error; err != nil {
		log.Printf("case write failed after session write for %s: %v", in.SessionID, err)
		return nil, fmt.Errorf("store: save case %s: %w", in.CaseNumber, err)
	}
	return rec, nil
}

// CasesForUser lists a user's filed cases, newest first.
func (g *Gateway) CasesForUser(userID string) ([]CaseRecord, error) {
	var cases []CaseRecord
	err := g.db.Where(&CaseRecord{UserID: userID}).
		Order("created_at DESC").
		Find(&cases).Error
	if err != nil {
		return nil, fmt.Errorf("store: list cases for %s: %w", userID, err)
	}
	return cases, nil
}

// CaseByNumber fetches one case record.
func (g *Gateway) CaseByNumber(caseNumber string) (*CaseRecord, error) {
	rec := &CaseRecord{}
	err := g.db.Where(&CaseRecord{CaseNumber: caseNumber}).First(rec).Error
	if err != nil {
		return nil, fmt.Errorf("store: case %s: %w", caseNumber, err)
	}
	return rec, nil
}

// PurgeStaleSessions deletes conversation sessions older than the cutoff
// whose case never made it into the store. The session row carries a case
// number from the moment it is written, so "stale" means no matching case
// record exists, not a blank number. Returns the number of rows removed.
func (g *Gateway) PurgeStaleSessions(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	recorded := g.db.Model(&CaseRecord{}).Select("session_id")
	res := g.db.Where("created_at < ? AND session_id NOT IN (?)", cutoff, recorded).
		Delete(&ConversationSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
