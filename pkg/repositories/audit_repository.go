package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/database"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
)

// AuditRepository persists operational audit events.
type AuditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	Recent(ctx context.Context, limit int64) ([]*models.AuditEvent, error)
}

// auditRepository implements AuditRepository on the audit collection.
type auditRepository struct {
	collection *mongo.Collection
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{collection: db.Collection(database.CollectionAudit)}
}

func (r *auditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (r *auditRepository) Recent(ctx context.Context, limit int64) ([]*models.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*models.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}
