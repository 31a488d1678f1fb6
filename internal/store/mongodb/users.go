package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TamirHazut/ERP/internal/auth"
)

type userStore struct {
	coll *mongo.Collection
}

var _ auth.UserStore = (*userStore)(nil)

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, tenantID, id string) (*auth.User, error) {
	var user auth.User
	filter := bson.M{"_id": id, "tenant_id": tenantID}
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *userStore) FindByUsername(ctx context.Context, tenantID, username string) (*auth.User, error) {
	var user auth.User
	filter := bson.M{"tenant_id": tenantID, "username": username}
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *userStore) FindByEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	var user auth.User
	filter := bson.M{"tenant_id": tenantID, "email": email}
	if err := s.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *userStore) ListByTenant(ctx context.Context, tenantID string) ([]*auth.User, error) {
	filter := bson.M{"tenant_id": tenantID}
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, translateError(err)
	}
	var users []*auth.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongodb: decode users: %w", err)
	}
	return users, nil
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	filter := bson.M{"_id": u.ID, "tenant_id": u.TenantID}
	res, err := s.coll.ReplaceOne(ctx, filter, u)
	if err != nil {
		return translateError(err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *userStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "tenant_id": tenantID})
	if err != nil {
		return translateError(err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrNotFound
	}
	return nil
}
