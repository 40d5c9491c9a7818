package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4

	AuthorID   string `bson:"author_id" json:"author_id"`
	AuthorName string `bson:"author_name" json:"author_name"`

	// Content is the originating post text the conversation was opened from.
	Content  string `bson:"content" json:"content"`
	Source   string `bson:"source,omitempty" json:"source,omitempty"`
	SourceID string `bson:"source_id,omitempty" json:"source_id,omitempty"`

	Status string `bson:"status" json:"status"` // open|active|closed

	// AgentID is set while a human agent holds the session. A non-empty
	// value means the automated agent must not respond.
	AgentID string `bson:"agent_id,omitempty" json:"agent_id,omitempty"`

	// Seeded marks that Content was already auto-sent as the first message.
	Seeded bool `bson:"seeded" json:"seeded"`

	LastMessage   string     `bson:"last_message,omitempty" json:"last_message,omitempty"`
	LastMessageAt *time.Time `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

const (
	SessionStatusOpen   = "open"
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)
