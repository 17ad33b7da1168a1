package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/allureimpex/allure-impex-api/internal/config"
)

// OpenMongo connects to the document store, verifies the connection and
// returns the configured database handle.
func OpenMongo(c config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(c.URI).
		SetMaxPoolSize(25).
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(c.Database), nil
}

// EnsureMongoIndexes creates the unique email index on users and the list
// indexes on products and messages. Creating an existing index is a no-op.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	specs := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{"users", mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		}},
		{"users", mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}},
		{"products", mongo.IndexModel{
			Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{"products", mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}, {Key: "category", Value: "text"}},
			Options: options.Index().SetName("product_text"),
		}},
		{"messages", mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}}},
	}
	for _, s := range specs {
		if _, err := db.Collection(s.coll).Indexes().CreateOne(ctx, s.model); err != nil {
			return fmt.Errorf("create index on %s: %w", s.coll, err)
		}
	}
	return nil
}
