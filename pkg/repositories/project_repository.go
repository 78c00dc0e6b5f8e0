package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/database"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
)

// ProjectRepository defines the interface for project data access.
// Membership writes are set-union only, so they are idempotent and commute
// under concurrent interleaving.
type ProjectRepository interface {
	GetByName(ctx context.Context, name string) (*models.Project, error)
	Names(ctx context.Context) ([]string, error)
	ByMember(ctx context.Context, userID string) ([]*models.Project, error)
	AddMember(ctx context.Context, name, userID string) error
	AddMembersAll(ctx context.Context, userIDs []string) error
	AddForm(ctx context.Context, name, formName string) error
}

// projectRepository implements ProjectRepository on the projects collection.
type projectRepository struct {
	collection *mongo.Collection
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{collection: db.Collection(database.CollectionProjects)}
}

func (r *projectRepository) GetByName(ctx context.Context, name string) (*models.Project, error) {
	var project models.Project
	if err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&project); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("project %q: %w", name, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (r *projectRepository) Names(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "name", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list project names: %w", err)
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *projectRepository) ByMember(ctx context.Context, userID string) ([]*models.Project, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"users": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find projects by member: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []*models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepository) AddMember(ctx context.Context, name, userID string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$addToSet": bson.M{"users": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("project %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}

func (r *projectRepository) AddMembersAll(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(ctx,
		bson.M{},
		bson.M{"$addToSet": bson.M{"users": bson.M{"$each": userIDs}}},
	)
	if err != nil {
		return fmt.Errorf("failed to add members to all projects: %w", err)
	}
	return nil
}

func (r *projectRepository) AddForm(ctx context.Context, name, formName string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$addToSet": bson.M{"forms": formName}},
	)
	if err != nil {
		return fmt.Errorf("failed to add form to project: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("project %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}
