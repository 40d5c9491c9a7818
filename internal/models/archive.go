package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// TranscriptLog is the Postgres archive row written for every finalized
// turn. The live store (Mongo) stays authoritative for the UI; this table
// feeds analytics and semantic search.
type TranscriptLog struct {
	ID        string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID string          `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	UserID    string          `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Role      string          `gorm:"column:role;type:text" json:"role"` // customer|bot|agent
	Content   string          `gorm:"column:content;type:text" json:"content"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"embedding"`
	Timestamp time.Time       `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	Metadata  datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
}

func (TranscriptLog) TableName() string { return "transcript_logs" }
