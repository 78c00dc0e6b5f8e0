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

// FormRepository defines the interface for form data access. Lifecycle writes
// (SetDraft, SetLive) are single-document updates applied only after the
// matching Central call succeeded, so local state never runs ahead of Central.
type FormRepository interface {
	Create(ctx context.Context, form *models.Form) error

	// GetByName resolves a form by name. Names are unique across the store,
	// so a bare name identifies exactly one form and its owning project.
	GetByName(ctx context.Context, name string) (*models.Form, error)

	Get(ctx context.Context, project, name string) (*models.Form, error)
	Names(ctx context.Context) ([]string, error)
	NamesByProject(ctx context.Context, project string) ([]string, error)
	ByMember(ctx context.Context, userID string) ([]*models.Form, error)
	AddMember(ctx context.Context, name, userID string) error
	AddMembersByProject(ctx context.Context, project, userID string) error
	AddMembersAll(ctx context.Context, userIDs []string) error

	// SetDraft records a new draft version and its Collect settings.
	SetDraft(ctx context.Context, project, name, version string, details *models.CollectSettings) error

	// SetLive promotes the given version: live flag on, draft flag and
	// version cleared.
	SetLive(ctx context.Context, project, name, version string) error
}

// formRepository implements FormRepository on the forms collection.
type formRepository struct {
	collection *mongo.Collection
}

// NewFormRepository creates a new form repository.
func NewFormRepository(db *database.DB) FormRepository {
	return &formRepository{collection: db.Collection(database.CollectionForms)}
}

func (r *formRepository) Create(ctx context.Context, form *models.Form) error {
	if _, err := r.collection.InsertOne(ctx, form); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("form %q already exists: %w", form.Name, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create form: %w", err)
	}
	return nil
}

func (r *formRepository) GetByName(ctx context.Context, name string) (*models.Form, error) {
	return r.getOne(ctx, bson.M{"name": name})
}

func (r *formRepository) Get(ctx context.Context, project, name string) (*models.Form, error) {
	return r.getOne(ctx, bson.M{"project": project, "name": name})
}

func (r *formRepository) getOne(ctx context.Context, filter bson.M) (*models.Form, error) {
	var form models.Form
	if err := r.collection.FindOne(ctx, filter).Decode(&form); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("form: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return &form, nil
}

func (r *formRepository) Names(ctx context.Context) ([]string, error) {
	return r.distinctNames(ctx, bson.M{})
}

func (r *formRepository) NamesByProject(ctx context.Context, project string) ([]string, error) {
	return r.distinctNames(ctx, bson.M{"project": project})
}

func (r *formRepository) distinctNames(ctx context.Context, filter bson.M) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "name", filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list form names: %w", err)
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *formRepository) ByMember(ctx context.Context, userID string) ([]*models.Form, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"users": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find forms by member: %w", err)
	}
	defer cursor.Close(ctx)

	var forms []*models.Form
	if err := cursor.All(ctx, &forms); err != nil {
		return nil, fmt.Errorf("failed to decode forms: %w", err)
	}
	return forms, nil
}

func (r *formRepository) AddMember(ctx context.Context, name, userID string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$addToSet": bson.M{"users": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add form member: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("form %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}

func (r *formRepository) AddMembersByProject(ctx context.Context, project, userID string) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"project": project},
		bson.M{"$addToSet": bson.M{"users": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add member to project forms: %w", err)
	}
	return nil
}

func (r *formRepository) AddMembersAll(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(ctx,
		bson.M{},
		bson.M{"$addToSet": bson.M{"users": bson.M{"$each": userIDs}}},
	)
	if err != nil {
		return fmt.Errorf("failed to add members to all forms: %w", err)
	}
	return nil
}

func (r *formRepository) SetDraft(ctx context.Context, project, name, version string, details *models.CollectSettings) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"project": project, "name": name},
		bson.M{"$set": bson.M{
			"draft":                  true,
			"draftVersion":           version,
			"draftCollectionDetails": details,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to set draft: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("form %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}

func (r *formRepository) SetLive(ctx context.Context, project, name, version string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"project": project, "name": name},
		bson.M{
			"$set": bson.M{
				"draft":        false,
				"live":         true,
				"liveVersion":  version,
				"draftVersion": nil,
			},
			"$unset": bson.M{"draftCollectionDetails": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to set live: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("form %q: %w", name, apperrors.ErrNotFound)
	}
	return nil
}
