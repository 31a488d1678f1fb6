package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TamirHazut/ERP/internal/auth"
)

type auditStore struct {
	coll *mongo.Collection
}

var _ auth.AuditStore = (*auditStore)(nil)

func (s *auditStore) Append(ctx context.Context, entry *auth.AuditEntry) error {
	if _, err := s.coll.InsertOne(ctx, entry); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *auditStore) ListByTenant(ctx context.Context, tenantID string, limit int64) ([]*auth.AuditEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.coll.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, translateError(err)
	}
	var entries []*auth.AuditEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongodb: decode audit entries: %w", err)
	}
	return entries, nil
}
