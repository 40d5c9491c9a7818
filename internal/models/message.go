package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sender roles. A message with RoleAgent also carries the agent's id.
const (
	RoleCustomer = "customer"
	RoleBot      = "bot"
	RoleAgent    = "agent"
)

type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID string             `bson:"message_id" json:"message_id"` // uuid v4
	SessionID string             `bson:"session_id" json:"session_id"`

	Content    string `bson:"content" json:"content"`
	SenderID   string `bson:"sender_id" json:"sender_id"`
	SenderName string `bson:"sender_name" json:"sender_name"`
	SenderRole string `bson:"sender_role" json:"sender_role"` // customer|bot|agent
	AgentID    string `bson:"agent_id,omitempty" json:"agent_id,omitempty"`

	IsEdited bool       `bson:"is_edited" json:"is_edited"`
	EditedAt *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
