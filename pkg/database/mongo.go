// Package database manages the MongoDB connection shared by all repositories.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names for the three domain collections plus the audit trail.
const (
	CollectionUsers    = "users"
	CollectionProjects = "projects"
	CollectionForms    = "forms"
	CollectionAudit    = "audit"
)

// DB wraps a mongo client scoped to one database.
type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

// Config holds document store connection configuration.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Connect establishes a single connection attempt and verifies it with a
// ping. Callers wanting startup resilience wrap this in retry.DoWithResult.
func Connect(ctx context.Context, cfg *Config) (*DB, error) {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &DB{client: client, database: client.Database(cfg.Database)}, nil
}

// Collection returns a handle to a named collection.
func (db *DB) Collection(name string) *mongo.Collection {
	return db.database.Collection(name)
}

// EnsureIndexes creates the indexes the repositories rely on: one account
// per email, one project per name, one form per name. Form names are unique
// across the whole store, not per project, because user role sets and grant
// requests refer to forms by bare name.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{CollectionUsers, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}},
		{CollectionProjects, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}},
		{CollectionForms, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique}},
		{CollectionForms, mongo.IndexModel{Keys: bson.D{{Key: "project", Value: 1}}}},
		{CollectionAudit, mongo.IndexModel{Keys: bson.D{{Key: "time", Value: -1}}}},
	}

	for _, idx := range indexes {
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection, err)
		}
	}

	return nil
}

// Close disconnects the underlying client.
func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}
