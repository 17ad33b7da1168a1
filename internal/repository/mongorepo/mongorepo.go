// Package mongorepo implements the repository contracts on MongoDB. Ids are
// ObjectID hex strings; a malformed id reads as not found.
package mongorepo

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// New returns a Stores bundle over the given database.
func New(client *mongo.Client, db *mongo.Database) repository.Stores {
	return repository.Stores{
		Users:    NewUserRepo(db),
		Products: NewProductRepo(db),
		Messages: NewMessageRepo(db),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Close: client.Disconnect,
	}
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, repository.ErrNotFound
	}
	return oid, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

// containsRegex is the $regex form of repository.MatchesSearch for one field.
func containsRegex(q string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(q)), Options: "i"}
}

// findOptions applies sort and pagination. Ties break on _id in the same
// direction, which follows insertion order.
func findOptions(s repository.Sort, p repository.Page, fields map[string]string) *options.FindOptions {
	field, ok := fields[s.FieldOr(repository.SortCreatedAt)]
	if !ok {
		field = "createdAt"
	}
	dir := -1
	if s.Asc {
		dir = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}})
	if p.Paginated() {
		opts.SetSkip(int64(p.Offset())).SetLimit(int64(p.Limit))
	}
	return opts
}

// list runs a counted, sorted find and decodes every document with conv.
func list[D any, T any](ctx context.Context, c *mongo.Collection, filter bson.M,
	opts *options.FindOptions, conv func(D) T) ([]T, int64, error) {
	total, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []T{}
	for cur.Next(ctx) {
		var d D
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, conv(d))
	}
	return out, total, cur.Err()
}

func deleteByID(ctx context.Context, c *mongo.Collection, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func updateByID(ctx context.Context, c *mongo.Collection, id string, set bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
