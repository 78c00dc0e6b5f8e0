package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditEvent is one operational event persisted to the audit collection.
// Fields carries free-form structured context (user ids, project names).
type AuditEvent struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"-"`
	Time      time.Time              `bson:"time" json:"time"`
	Component string                 `bson:"component" json:"component"`
	Message   string                 `bson:"message" json:"message"`
	Fields    map[string]interface{} `bson:"fields,omitempty" json:"fields,omitempty"`
}
