// Package domain defines the persistence models for users, chat exchanges,
// diary entries, and per-user conversation state. These types are mapped
// with GORM and form the core data layer of the companion backend.
package domain

import (
	"encoding/json"
	"time"
)

// User is the pet owner. The UUID is an opaque client-supplied key stored
// in canonical upper-case form (see NormalizeUUID).
//
// Fields:
//   - UUID: primary key.
//   - Nickname: display name chosen at onboarding.
//   - AnimalType: bound character, nil until the first assignment turn.
//   - AnimalEmotion: current pet mood, nil until first set.
//   - AnimalLevel: pet level (>= 1).
//   - Points: accumulated emotional score (>= 0).
//   - IsNotified: client-side notification flag.
type User struct {
	UUID          string    `json:"uuid"           gorm:"type:varchar(64);primaryKey"`
	Nickname      string    `json:"nickname"       gorm:"type:varchar(255);not null"`
	AnimalType    *string   `json:"animal_type"    gorm:"type:varchar(16)"`
	AnimalEmotion *string   `json:"animal_emotion" gorm:"type:varchar(16)"`
	AnimalLevel   int       `json:"animal_level"   gorm:"not null;default:1"`
	Points        int       `json:"points"         gorm:"not null;default:0"`
	IsNotified    bool      `json:"is_notified"    gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Animal returns the bound character, or "" when none is assigned.
func (u User) Animal() Character {
	if u.AnimalType == nil {
		return ""
	}
	return Character(*u.AnimalType)
}

// Mood returns the stored pet emotion, or "" when unset.
func (u User) Mood() Emotion {
	if u.AnimalEmotion == nil {
		return ""
	}
	return Emotion(*u.AnimalEmotion)
}

// ChatMessage is one user/assistant exchange. The log is append-only; the
// diary reads a day's worth of rows back in creation order.
type ChatMessage struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	UUID       string    `json:"uuid"        gorm:"type:varchar(64);not null;index:idx_user_chats,priority:1"`
	UserInput  string    `json:"user_input"  gorm:"type:text;not null"`
	ChatOutput string    `json:"chat_output" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_user_chats,priority:2"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chats" }

// DiaryEntry is the daily summary for a user. (UUID, Date) is unique and
// regenerating a day replaces the entry.
type DiaryEntry struct {
	UUID      string    `json:"uuid"       gorm:"type:varchar(64);primaryKey"`
	Date      string    `json:"date"       gorm:"type:char(10);primaryKey"` // YYYY-MM-DD
	Summary   string    `json:"summary"    gorm:"type:text;not null"`
	Emotion   string    `json:"emotion"    gorm:"type:varchar(16);not null;default:'neutral'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DiaryEntry.
func (DiaryEntry) TableName() string { return "diaries" }

// Role tags who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the rolling conversation history fed to the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the persisted per-user conversation state: how many
// exchanges happened so far and the history since the last cycle reset.
type Conversation struct {
	UUID      string    `json:"uuid"       gorm:"type:varchar(64);primaryKey"`
	Count     int       `json:"count"      gorm:"not null;default:0"`
	History   string    `json:"-"          gorm:"type:text;not null;default:'[]'"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Turns decodes the stored history. An empty column yields no turns.
func (c Conversation) Turns() ([]Turn, error) {
	if c.History == "" {
		return nil, nil
	}
	var out []Turn
	if err := json.Unmarshal([]byte(c.History), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetTurns encodes turns into the history column.
func (c *Conversation) SetTurns(turns []Turn) error {
	if turns == nil {
		turns = []Turn{}
	}
	b, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	c.History = string(b)
	return nil
}

// Models lists every table the service migrates.
func Models() []any {
	return []any{&User{}, &ChatMessage{}, &DiaryEntry{}, &Conversation{}}
}
