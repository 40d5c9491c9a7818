package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RequestLabelUrgent = "urgent"
	RequestLabelNormal = "normal"
	RequestLabelLow    = "low"

	RequestStatusOngoing   = "ongoing"
	RequestStatusProcessed = "processed"
	RequestStatusDone      = "done"
	RequestStatusFail      = "fail"
	RequestStatusCancelled = "cancelled"
)

// SupportRequest is a human-intervention ticket raised for a session,
// either explicitly by the customer or by the automated agent.
type SupportRequest struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID string             `bson:"request_id" json:"request_id"` // uuid v4
	SessionID string             `bson:"session_id" json:"session_id"`

	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
	UserID      string `bson:"user_id" json:"user_id"`
	UserName    string `bson:"user_name" json:"user_name"`

	Label  string `bson:"label" json:"label"`   // urgent|normal|low
	Status string `bson:"status" json:"status"` // ongoing|processed|done|fail|cancelled

	TechnicianID   string     `bson:"technician_id,omitempty" json:"technician_id,omitempty"`
	TechnicianName string     `bson:"technician_name,omitempty" json:"technician_name,omitempty"`
	TechnicianNote string     `bson:"technician_note,omitempty" json:"technician_note,omitempty"`
	ProcessedAt    *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
