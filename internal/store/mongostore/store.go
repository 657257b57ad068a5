package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pressline/internal/config"
)

const (
	jobsCollection  = "jobs"
	usersCollection = "users"
)

// Store is the MongoDB record store. Timelines are embedded in job documents.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	jobs    *mongo.Collection
	users   *mongo.Collection
	timeout time.Duration
}

// Open connects using the store section of cfg and ensures indexes.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.Store.MongoURI == "" {
		return nil, errors.New("mongo uri is empty")
	}
	return OpenURI(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase, cfg.StoreTimeout())
}

// OpenURI connects to uri and uses database name.
func OpenURI(ctx context.Context, uri, name string, timeout time.Duration) (*Store, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if timeout > 0 {
		clientOptions.SetTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(name)
	s := &Store{
		client:  client,
		db:      db,
		jobs:    db.Collection(jobsCollection),
		users:   db.Collection(usersCollection),
		timeout: timeout,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ot", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "press", Value: 1}, {Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create job indexes: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "employeeId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// Database exposes the underlying database handle.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
