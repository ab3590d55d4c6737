package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the filer identity. Device-scoped: clients that have no login
// identify themselves with a stable device ID.
type User struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	DeviceID string `gorm:"size:128;uniqueIndex"`
	Name     string `gorm:"size:128"`
	Language string `gorm:"size:8"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// ConversationSession is the persisted transcript of one conversation.
// Messages are stored as a JSON array.
type ConversationSession struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	SessionID  string `gorm:"size:64;uniqueIndex"`
	UserID     string `gorm:"type:uuid;index"`
	CaseNumber string `gorm:"size:16;index"`
	Language   string `gorm:"size:8"`
	Messages   string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *ConversationSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// CaseRecord is the durable outcome of a finalized filing. Identity is
// the generated case number; the unique index makes a random collision
// fail loudly instead of silently merging two filings.
type CaseRecord struct {
	ID                  string `gorm:"type:uuid;primaryKey"`
	CaseNumber          string `gorm:"size:16;uniqueIndex"`
	UserID              string `gorm:"type:uuid;index"`
	SessionID           string `gorm:"size:64;index"`
	CaseType            string `gorm:"size:128"`
	CaseDetails         string `gorm:"type:text"`
	ConversationSummary string `gorm:"type:text"`
	FilingQuestions     string `gorm:"type:text"`
	UserResponses       string `gorm:"type:text"`
	Status              string `gorm:"size:16;default:filed"`
	Language            string `gorm:"size:8"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *CaseRecord) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
