package mongorepo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

type imageDoc struct {
	URL      string `bson:"url"`
	PublicID string `bson:"public_id"`
	Alt      string `bson:"alt,omitempty"`
}

type productDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Description    string             `bson:"description"`
	Category       string             `bson:"category"`
	Subcategory    string             `bson:"subcategory,omitempty"`
	Features       []string           `bson:"features"`
	Images         []imageDoc         `bson:"images"`
	Specifications map[string]string  `bson:"specifications"`
	IsActive       bool               `bson:"isActive"`
	IsFeatured     bool               `bson:"isFeatured"`
	CreatedBy      primitive.ObjectID `bson:"createdBy"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func toProductDoc(p model.Product) productDoc {
	p.Normalize()
	d := productDoc{
		Name:           p.Name,
		Description:    p.Description,
		Category:       string(p.Category),
		Subcategory:    p.Subcategory,
		Features:       p.Features,
		Images:         make([]imageDoc, len(p.Images)),
		Specifications: p.Specifications,
		IsActive:       p.IsActive,
		IsFeatured:     p.IsFeatured,
	}
	for i, img := range p.Images {
		d.Images[i] = imageDoc(img)
	}
	// unknown creator ids are stored as the nil id and never populate
	d.CreatedBy, _ = primitive.ObjectIDFromHex(p.CreatedByID)
	return d
}

func (d productDoc) toModel() model.Product {
	p := model.Product{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Description:    d.Description,
		Category:       model.Category(d.Category),
		Subcategory:    d.Subcategory,
		Features:       d.Features,
		Images:         make([]model.Image, len(d.Images)),
		Specifications: d.Specifications,
		IsActive:       d.IsActive,
		IsFeatured:     d.IsFeatured,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	for i, img := range d.Images {
		p.Images[i] = model.Image(img)
	}
	if !d.CreatedBy.IsZero() {
		p.CreatedByID = d.CreatedBy.Hex()
	}
	p.Normalize()
	return p
}

// ProductRepo stores catalog entries in the 'products' collection.
type ProductRepo struct{ C *mongo.Collection }

func NewProductRepo(db *mongo.Database) *ProductRepo {
	return &ProductRepo{C: db.Collection("products")}
}

var productSortFields = map[string]string{
	repository.SortCreatedAt: "createdAt",
	repository.SortUpdatedAt: "updatedAt",
	repository.SortName:      "name",
	repository.SortCategory:  "category",
}

func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	d := toProductDoc(*p)
	d.ID = primitive.NewObjectID()
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	if _, err := r.C.InsertOne(ctx, d); err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = d.ID.Hex(), d.CreatedAt, d.UpdatedAt
	p.Normalize()
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.Product{}, err
	}
	var d productDoc
	if err := r.C.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return model.Product{}, notFound(err)
	}
	return d.toModel(), nil
}

// productFilter is the document form of repository.MatchesProduct.
func productFilter(f repository.ProductFilter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	if f.Subcategory != "" {
		filter["subcategory"] = f.Subcategory
	}
	if f.Featured != nil {
		filter["isFeatured"] = *f.Featured
	}
	if f.Active != nil {
		filter["isActive"] = *f.Active
	}
	if strings.TrimSpace(f.Search) != "" {
		re := containsRegex(f.Search)
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"description": re},
			bson.M{"category": re},
			bson.M{"subcategory": re},
			bson.M{"features": re},
		}
	}
	return filter
}

func (r *ProductRepo) List(ctx context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	return list(ctx, r.C, productFilter(f), findOptions(f.Sort, f.Page, productSortFields), productDoc.toModel)
}

func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	d := toProductDoc(*p)
	p.UpdatedAt = time.Now().UTC()
	return updateByID(ctx, r.C, p.ID, bson.M{
		"name":           d.Name,
		"description":    d.Description,
		"category":       d.Category,
		"subcategory":    d.Subcategory,
		"features":       d.Features,
		"images":         d.Images,
		"specifications": d.Specifications,
		"isActive":       d.IsActive,
		"isFeatured":     d.IsFeatured,
		"createdBy":      d.CreatedBy,
		"updatedAt":      p.UpdatedAt,
	})
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.C, id)
}
