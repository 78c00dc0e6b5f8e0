package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/database"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
)

// UserRepository defines the interface for user data access.
// All role mutations go through the set-union/replace primitives here so the
// role-implies-membership invariants cannot be violated by an ad hoc caller.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id string) error

	// AddRoleScopes unions the given project/form names into a user's scoped
	// role set and into the matching membership mirror (projects for
	// projectManager, forms for dataCollector/analyst).
	AddRoleScopes(ctx context.Context, userID string, kind models.RoleKind, scopes []string) error

	// AppendLog appends one entry to a user's activity log.
	AppendLog(ctx context.Context, userID string, entry models.LogEntry) error

	// SetAdministrator flags the account with the given email as administrator.
	SetAdministrator(ctx context.Context, email string) error

	// AdministratorIDs returns the ids of every administrator account.
	AdministratorIDs(ctx context.Context) ([]string, error)

	// SetAdministratorSets replaces every administrator's project/form
	// visibility and scoped role sets with the given full sets, recording one
	// log entry per account. Replacement (not append) keeps the operation
	// idempotent.
	SetAdministratorSets(ctx context.Context, projects, forms []string, entry models.LogEntry) error

	// UpsertAdministrator creates or refreshes the bootstrap administrator
	// account keyed by email. The activity log is only ever added to.
	UpsertAdministrator(ctx context.Context, user *models.User) error
}

// userRepository implements UserRepository on the users collection.
type userRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{collection: db.Collection(database.CollectionUsers)}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("email already registered: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, bson.M{"email": email})
}

func (r *userRepository) getOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *userRepository) AddRoleScopes(ctx context.Context, userID string, kind models.RoleKind, scopes []string) error {
	if !models.IsScopedRoleKind(kind) {
		return fmt.Errorf("role kind %q: %w", kind, apperrors.ErrInvalidArgument)
	}
	if len(scopes) == 0 {
		return nil
	}

	mirror := "forms"
	if kind == models.RoleProjectManager {
		mirror = "projects"
	}

	update := bson.M{"$addToSet": bson.M{
		"roles." + string(kind): bson.M{"$each": scopes},
		mirror:                  bson.M{"$each": scopes},
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to add role scopes: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *userRepository) AppendLog(ctx context.Context, userID string, entry models.LogEntry) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"log": entry}},
	)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *userRepository) SetAdministrator(ctx context.Context, email string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"roles.administrator": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to set administrator: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	return nil
}

func (r *userRepository) AdministratorIDs(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "_id", bson.M{"roles.administrator": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *userRepository) SetAdministratorSets(ctx context.Context, projects, forms []string, entry models.LogEntry) error {
	if projects == nil {
		projects = []string{}
	}
	if forms == nil {
		forms = []string{}
	}

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"roles.administrator": true},
		bson.M{
			"$set": bson.M{
				"projects":             projects,
				"forms":                forms,
				"roles.projectManager": projects,
				"roles.dataCollector":  forms,
				"roles.analyst":        forms,
			},
			"$push": bson.M{"log": entry},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to update administrators: %w", err)
	}
	return nil
}

func (r *userRepository) UpsertAdministrator(ctx context.Context, user *models.User) error {
	update := bson.M{
		"$set": bson.M{
			"email":    user.Email,
			"password": user.Password,
			"roles":    user.Roles,
			"projects": user.Projects,
			"forms":    user.Forms,
		},
		"$setOnInsert": bson.M{"_id": user.ID},
	}
	if len(user.Log) > 0 {
		update["$addToSet"] = bson.M{"log": bson.M{"$each": user.Log}}
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"email": user.Email},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert administrator: %w", err)
	}
	return nil
}
