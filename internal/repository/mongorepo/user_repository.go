package mongorepo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	Phone        string             `bson:"phone,omitempty"`
	Company      string             `bson:"company,omitempty"`
	Role         string             `bson:"role"`
	IsActive     bool               `bson:"isActive"`
	LastLogin    *time.Time         `bson:"lastLogin,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

func (d userDoc) toModel() model.User {
	return model.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Phone:        d.Phone,
		Company:      d.Company,
		Role:         model.Role(d.Role),
		IsActive:     d.IsActive,
		LastLogin:    d.LastLogin,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// UserRepo stores users in the 'users' collection.
type UserRepo struct{ C *mongo.Collection }

func NewUserRepo(db *mongo.Database) *UserRepo { return &UserRepo{C: db.Collection("users")} }

var userSortFields = map[string]string{
	repository.SortCreatedAt: "createdAt",
	repository.SortUpdatedAt: "updatedAt",
	repository.SortName:      "name",
}

func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	d := userDoc{
		ID:           primitive.NewObjectID(),
		Name:         u.Name,
		Email:        model.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		Company:      u.Company,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.C.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrEmailExists
		}
		return err
	}
	u.ID, u.Email, u.CreatedAt, u.UpdatedAt = d.ID.Hex(), d.Email, now, now
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var d userDoc
	if err := r.C.FindOne(ctx, filter).Decode(&d); err != nil {
		return model.User{}, notFound(err)
	}
	return d.toModel(), nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.User{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, bson.M{"email": model.NormalizeEmail(email)})
}

func (r *UserRepo) List(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	return list(ctx, r.C, bson.M{}, findOptions(f.Sort, f.Page, userSortFields), userDoc.toModel)
}

func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	u.UpdatedAt = time.Now().UTC()
	err := updateByID(ctx, r.C, u.ID, bson.M{
		"name":      u.Name,
		"email":     u.Email,
		"phone":     u.Phone,
		"company":   u.Company,
		"role":      string(u.Role),
		"isActive":  u.IsActive,
		"updatedAt": u.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrEmailExists
	}
	return err
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return updateByID(ctx, r.C, id, bson.M{"lastLogin": at.UTC()})
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.C, id)
}

// Creators loads only name and email for the given ids.
func (r *UserRepo) Creators(ctx context.Context, ids []string) (map[string]model.Creator, error) {
	out := make(map[string]model.Creator, len(ids))
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := objectID(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return out, nil
	}
	cur, err := r.C.Find(ctx, bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(bson.M{"name": 1, "email": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var d userDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out[d.ID.Hex()] = model.Creator{Name: d.Name, Email: d.Email}
	}
	return out, cur.Err()
}
