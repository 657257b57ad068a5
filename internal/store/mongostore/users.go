package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pressline/internal/store"
	"pressline/internal/users"
)

// InsertUser stores a new user.
func (s *Store) InsertUser(ctx context.Context, user *users.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert user %q: %w", user.EmployeeID, store.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmployeeID returns nil, nil when no user matches.
func (s *Store) UserByEmployeeID(ctx context.Context, employeeID string) (*users.User, error) {
	var user users.User
	err := s.users.FindOne(ctx, bson.M{"employeeId": employeeID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// UsersByIDs returns the users with the given ids; unknown ids are skipped.
func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]*users.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
}

// ListUsers returns every user ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]*users.User, error) {
	return s.findUsers(ctx, bson.M{}, options.Find().SetSort(bson.D{
		{Key: "name", Value: 1},
		{Key: "employeeId", Value: 1},
	}))
}

func (s *Store) findUsers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*users.User, error) {
	if opts == nil {
		opts = options.Find()
	}
	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer cursor.Close(ctx)

	var found []*users.User
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for _, user := range found {
		user.CreatedAt = user.CreatedAt.UTC()
	}
	return found, nil
}
