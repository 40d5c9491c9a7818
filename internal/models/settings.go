package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// BotSettings configures the automated agent: the system instructions it
// runs with plus free-form fields forwarded verbatim to the agent service.
type BotSettings struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SystemInstructions string             `bson:"system_instructions" json:"system_instructions"`
	Fields             map[string]string  `bson:"fields,omitempty" json:"fields,omitempty"`
}
