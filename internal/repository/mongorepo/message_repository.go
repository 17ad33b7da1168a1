package mongorepo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

type messageDoc struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty"`
	Name            string              `bson:"name"`
	Email           string              `bson:"email"`
	Phone           string              `bson:"phone,omitempty"`
	Company         string              `bson:"company,omitempty"`
	Subject         string              `bson:"subject"`
	Body            string              `bson:"message"`
	ProductInterest string              `bson:"productInterest,omitempty"`
	Status          string              `bson:"status"`
	UserID          *primitive.ObjectID `bson:"userId,omitempty"`
	ReplyMessage    string              `bson:"replyMessage,omitempty"`
	RepliedAt       *time.Time          `bson:"repliedAt,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt"`
}

func (d messageDoc) toModel() model.Message {
	m := model.Message{
		ID:              d.ID.Hex(),
		Name:            d.Name,
		Email:           d.Email,
		Phone:           d.Phone,
		Company:         d.Company,
		Subject:         d.Subject,
		Body:            d.Body,
		ProductInterest: model.Interest(d.ProductInterest),
		Status:          model.MessageStatus(d.Status),
		ReplyMessage:    d.ReplyMessage,
		RepliedAt:       d.RepliedAt,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
	if d.UserID != nil {
		m.UserID = d.UserID.Hex()
	}
	return m
}

// MessageRepo stores contact messages in the 'messages' collection.
type MessageRepo struct{ C *mongo.Collection }

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{C: db.Collection("messages")}
}

var messageSortFields = map[string]string{
	repository.SortCreatedAt: "createdAt",
	repository.SortUpdatedAt: "updatedAt",
	repository.SortStatus:    "status",
}

func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	now := time.Now().UTC()
	d := messageDoc{
		ID:              primitive.NewObjectID(),
		Name:            m.Name,
		Email:           m.Email,
		Phone:           m.Phone,
		Company:         m.Company,
		Subject:         m.Subject,
		Body:            m.Body,
		ProductInterest: string(m.ProductInterest),
		Status:          string(m.Status),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if oid, err := primitive.ObjectIDFromHex(m.UserID); err == nil {
		d.UserID = &oid
	}
	if _, err := r.C.InsertOne(ctx, d); err != nil {
		return err
	}
	m.ID, m.CreatedAt, m.UpdatedAt = d.ID.Hex(), now, now
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (model.Message, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.Message{}, err
	}
	var d messageDoc
	if err := r.C.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return model.Message{}, notFound(err)
	}
	return d.toModel(), nil
}

func (r *MessageRepo) List(ctx context.Context, f repository.MessageFilter) ([]model.Message, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return list(ctx, r.C, filter, findOptions(f.Sort, f.Page, messageSortFields), messageDoc.toModel)
}

// Update persists the triage fields: status and reply.
func (r *MessageRepo) Update(ctx context.Context, m *model.Message) error {
	m.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"status":       string(m.Status),
		"replyMessage": m.ReplyMessage,
		"updatedAt":    m.UpdatedAt,
	}
	if m.RepliedAt != nil {
		set["repliedAt"] = m.RepliedAt.UTC()
	}
	return updateByID(ctx, r.C, m.ID, set)
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.C, id)
}
