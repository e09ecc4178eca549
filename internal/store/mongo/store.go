// Package mongo implements pta.Store on MongoDB. Registrations are embedded
// in the event document and guarded by a single conditional update.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eastviewpta.org/internal/pta"
)

const (
	usersCollection  = "users"
	postsCollection  = "posts"
	eventsCollection = "events"

	// registration attempts before a changing event is reported as a conflict
	maxRegisterAttempts = 3
)

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	posts  *mongo.Collection
	events *mongo.Collection
}

var _ pta.Store = (*Store)(nil)

// Connect dials the deployment, verifies it with a ping and returns a store
// on the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := New(client.Database(database))
	s.client = client
	return s, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database) *Store {
	return &Store{
		users:  db.Collection(usersCollection),
		posts:  db.Collection(postsCollection),
		events: db.Collection(eventsCollection),
	}
}

// Close disconnects the client when the store owns it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.users.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the unique and listing indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_unique")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("users_status_created")},
		}},
		{s.posts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("posts_slug_unique")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "pinned", Value: -1}, {Key: "published_at", Value: -1}}, Options: options.Index().SetName("posts_listing")},
		}},
		{s.events, []mongo.IndexModel{
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}}, Options: options.Index().SetName("events_status_start")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}, Options: options.Index().SetName("events_status_end")},
		}},
	}
	for _, spec := range specs {
		if _, err := spec.coll.Indexes().CreateMany(ctx, spec.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", spec.coll.Name(), err)
		}
	}
	return nil
}

func mapError(kind string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return notFound(kind)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s %w", kind, pta.ErrConflict)
	default:
		return err
	}
}

func notFound(kind string) error {
	return fmt.Errorf("%s %w", kind, pta.ErrNotFound)
}

// setFields renders v as a flat $set document without the named keys.
func setFields(v any, omit ...string) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	for _, k := range omit {
		delete(doc, k)
	}
	return doc, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var returnAfter = options.FindOneAndUpdate().SetReturnDocument(options.After)
