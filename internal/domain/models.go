// Package domain defines the persistence models for the portfolio assistant:
// chat messages and (for CRUD completeness) user accounts. These types are
// mapped with GORM and form the data layer of the application.
package domain

import "time"

// Role values allowed for a Message. The check constraint on Message.Role
// mirrors these at the database level.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn of the conversation, authored either by
// the visitor ("user") or by the assistant. Turns are append-only: once
// created they are never edited or individually deleted.
//
// Fields:
//   - ID: monotonically increasing integer assigned by the store at insert
//     time (SQLite AUTOINCREMENT; never reused within a process lifetime).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: text body. For audio-originated user turns this is the
//     transcription result, never the raw audio.
//   - AudioURL: optional data URI carrying the original recorded audio of a
//     user turn; nil for assistant turns and for text-originated user turns.
//   - Timestamp: creation time assigned by the store; drives read ordering.
//
// JSON field names are camelCase to preserve the wire contract the widget
// frontend was built against.
type Message struct {
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	Role      string    `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"   gorm:"type:text;not null"`
	AudioURL  *string   `json:"audioUrl"  gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_msg_order"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// User is a minimal account record. It is part of the store's CRUD surface
// for completeness but is not exercised by the chat flow; no endpoint in this
// service reads or writes it.
type User struct {
	ID       int64  `json:"id"       gorm:"primaryKey;autoIncrement"`
	Username string `json:"username" gorm:"type:varchar(64);not null;uniqueIndex"`
	Password string `json:"-"        gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
