package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/imagehost"
	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// Advanced search paging defaults.
const (
	DefaultSearchLimit = 12
	MaxSearchLimit     = 100
)

var productSortFields = []string{
	repository.SortCreatedAt, repository.SortUpdatedAt, repository.SortName, repository.SortCategory,
}

// ProductService is the catalog.
type ProductService struct {
	products     repository.ProductStore
	users        repository.UserStore
	images       imagehost.Host
	imageTimeout time.Duration
	events       *events
	log          zerolog.Logger
	rec          Recorder
}

// ProductQuery filters a catalog listing. Callers without the catalog
// capability only ever see active products.
type ProductQuery struct {
	Search      string
	Category    string
	Subcategory string
	Featured    *bool
	Active      *bool
	ListParams
}

// CreateProductInput is the body of a product creation.
type CreateProductInput struct {
	Name           string            `json:"name" validate:"required,max=200"`
	Description    string            `json:"description" validate:"required"`
	Category       string            `json:"category" validate:"required"`
	Subcategory    string            `json:"subcategory" validate:"max=100"`
	Features       []string          `json:"features"`
	Images         []model.Image     `json:"images"`
	Specifications map[string]string `json:"specifications"`
	IsActive       *bool             `json:"isActive"`
	IsFeatured     *bool             `json:"isFeatured"`
}

// UpdateProductInput is a partial product update.
type UpdateProductInput struct {
	Name           *string            `json:"name" validate:"omitempty,min=1,max=200"`
	Description    *string            `json:"description" validate:"omitempty,min=1"`
	Category       *string            `json:"category"`
	Subcategory    *string            `json:"subcategory" validate:"omitempty,max=100"`
	Features       *[]string          `json:"features"`
	Images         *[]model.Image     `json:"images"`
	Specifications *map[string]string `json:"specifications"`
	IsActive       *bool              `json:"isActive"`
	IsFeatured     *bool              `json:"isFeatured"`
	CreatedBy      *string            `json:"createdBy"`
}

// List is the plain catalog listing: category, featured and search text.
func (s *ProductService) List(ctx context.Context, actor model.Identity, q ProductQuery) (List[model.Product], error) {
	return s.list(ctx, actor, q)
}

// Search is the advanced listing. It is always paginated, page 1 and 12
// per page by default.
func (s *ProductService) Search(ctx context.Context, actor model.Identity, q ProductQuery) (List[model.Product], error) {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultSearchLimit
	case q.Limit > MaxSearchLimit:
		q.Limit = MaxSearchLimit
	}
	return s.list(ctx, actor, q)
}

func (s *ProductService) list(ctx context.Context, actor model.Identity, q ProductQuery) (List[model.Product], error) {
	f, err := s.filter(actor, q)
	if err != nil {
		return List[model.Product]{}, err
	}
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return List[model.Product]{}, Internal(err)
	}
	if err := s.populate(ctx, items); err != nil {
		return List[model.Product]{}, err
	}
	return newList(items, total, f.Page), nil
}

func (s *ProductService) filter(actor model.Identity, q ProductQuery) (repository.ProductFilter, error) {
	page, sort := q.repo()
	if sort.Field != "" && !contains(productSortFields, sort.Field) {
		return repository.ProductFilter{}, Validation(FieldError{
			Field:   "sortBy",
			Message: "sortBy must be one of: " + strings.Join(productSortFields, " "),
		})
	}
	f := repository.ProductFilter{
		Search:      strings.TrimSpace(q.Search),
		Subcategory: strings.TrimSpace(q.Subcategory),
		Featured:    q.Featured,
		Active:      q.Active,
		Sort:        sort,
		Page:        page,
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		if !model.Category(c).Valid() {
			return repository.ProductFilter{}, Validation(categoryField())
		}
		f.Category = model.Category(c)
	}
	if !model.Can(actor, model.CapManageCatalog) {
		active := true
		f.Active = &active
	}
	return f, nil
}

// Get returns one product. Inactive products are hidden from callers
// without the catalog capability.
func (s *ProductService) Get(ctx context.Context, actor model.Identity, id string) (model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, storeErr(err, "Product")
	}
	if !p.IsActive && !model.Can(actor, model.CapManageCatalog) {
		return model.Product{}, NotFound("Product not found")
	}
	if err := s.populateOne(ctx, &p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Create stores a product stamped with the acting admin as creator.
func (s *ProductService) Create(ctx context.Context, actor model.Identity, in CreateProductInput) (model.Product, error) {
	if err := requireCap(actor, model.CapManageCatalog); err != nil {
		return model.Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	var catErr error
	if in.Category != "" && !model.Category(in.Category).Valid() {
		catErr = Validation(categoryField())
	}
	if err := joinValidation(check(in), catErr, checkImages(in.Images)); err != nil {
		return model.Product{}, err
	}
	if err := s.requireUser(ctx, actor.UserID); err != nil {
		return model.Product{}, err
	}

	p := model.Product{
		Name:           in.Name,
		Description:    in.Description,
		Category:       model.Category(in.Category),
		Subcategory:    strings.TrimSpace(in.Subcategory),
		Features:       cleanFeatures(in.Features),
		Images:         in.Images,
		Specifications: in.Specifications,
		IsActive:       true,
		CreatedByID:    actor.UserID,
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	p.Normalize()
	if err := s.products.Create(ctx, &p); err != nil {
		return model.Product{}, Internal(err)
	}
	if err := s.populateOne(ctx, &p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Update applies a partial update. Enumerated fields are re-validated and
// a new creator must reference an existing user.
func (s *ProductService) Update(ctx context.Context, actor model.Identity, id string, in UpdateProductInput) (model.Product, error) {
	if err := requireCap(actor, model.CapManageCatalog); err != nil {
		return model.Product{}, err
	}
	var errs []error
	errs = append(errs, check(in))
	patch := model.ProductPatch{
		Name:           trimmedOrNil(in.Name),
		Description:    trimmedOrNil(in.Description),
		Subcategory:    in.Subcategory,
		Images:         in.Images,
		Specifications: in.Specifications,
		IsActive:       in.IsActive,
		IsFeatured:     in.IsFeatured,
	}
	if in.Name != nil && patch.Name == nil {
		errs = append(errs, Validation(FieldError{Field: "name", Message: "name is required"}))
	}
	if in.Description != nil && patch.Description == nil {
		errs = append(errs, Validation(FieldError{Field: "description", Message: "description is required"}))
	}
	if in.Category != nil {
		c := model.Category(strings.TrimSpace(*in.Category))
		if !c.Valid() {
			errs = append(errs, Validation(categoryField()))
		}
		patch.Category = &c
	}
	if in.Features != nil {
		f := cleanFeatures(*in.Features)
		patch.Features = &f
	}
	if in.Images != nil {
		errs = append(errs, checkImages(*in.Images))
	}
	if err := joinValidation(errs...); err != nil {
		return model.Product{}, err
	}
	if in.CreatedBy != nil {
		by := strings.TrimSpace(*in.CreatedBy)
		if err := s.requireUser(ctx, by); err != nil {
			return model.Product{}, err
		}
		patch.CreatedByID = &by
	}

	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return model.Product{}, storeErr(err, "Product")
	}
	patch.Apply(&p)
	if err := s.products.Update(ctx, &p); err != nil {
		return model.Product{}, storeErr(err, "Product")
	}
	if err := s.populateOne(ctx, &p); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Delete removes the product, then releases its images at the host.
// Release failures are logged and reported in the product.deleted event;
// they never fail the delete.
func (s *ProductService) Delete(ctx context.Context, actor model.Identity, id string) error {
	if err := requireCap(actor, model.CapManageCatalog); err != nil {
		return err
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "Product")
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return storeErr(err, "Product")
	}

	pending := s.releaseImages(ctx, p)
	s.events.publish(ctx, queue.TypeProductDeleted, queue.ProductDeleted{
		ProductID:     p.ID,
		Name:          p.Name,
		DeletedBy:     actor.UserID,
		ImagesPending: pending,
	})
	return nil
}

// releaseImages destroys each referenced object and returns the public ids
// that could not be released.
func (s *ProductService) releaseImages(ctx context.Context, p model.Product) []string {
	var pending []string
	for _, img := range p.Images {
		if img.PublicID == "" {
			continue
		}
		if s.images == nil {
			pending = append(pending, img.PublicID)
			continue
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.imageTimeout)
		err := s.images.Destroy(cctx, img.PublicID)
		cancel()
		if errors.Is(err, imagehost.ErrNotFound) {
			err = nil
		}
		s.rec.RecordImageRelease(err)
		if err != nil {
			s.log.Warn().Err(err).Str("product_id", p.ID).Str("public_id", img.PublicID).Msg("image release failed")
			pending = append(pending, img.PublicID)
		}
	}
	if s.images == nil && len(pending) > 0 {
		s.log.Warn().Str("product_id", p.ID).Int("images", len(pending)).Msg("no image host configured, images not released")
	}
	return pending
}

// populate replaces creator ids with {name,email}. Unknown creators stay
// null.
func (s *ProductService) populate(ctx context.Context, items []model.Product) error {
	ids := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, p := range items {
		if p.CreatedByID != "" && !seen[p.CreatedByID] {
			seen[p.CreatedByID] = true
			ids = append(ids, p.CreatedByID)
		}
	}
	creators, err := s.users.Creators(ctx, ids)
	if err != nil {
		return Internal(err)
	}
	for i := range items {
		if c, ok := creators[items[i].CreatedByID]; ok {
			items[i].CreatedBy = &c
		}
	}
	return nil
}

func (s *ProductService) populateOne(ctx context.Context, p *model.Product) error {
	items := []model.Product{*p}
	if err := s.populate(ctx, items); err != nil {
		return err
	}
	*p = items[0]
	return nil
}

func (s *ProductService) requireUser(ctx context.Context, id string) error {
	if id == "" {
		return Validation(FieldError{Field: "createdBy", Message: "createdBy must reference an existing user"})
	}
	_, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return Validation(FieldError{Field: "createdBy", Message: "createdBy must reference an existing user"})
	}
	if err != nil {
		return Internal(err)
	}
	return nil
}

func categoryField() FieldError {
	names := make([]string, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		names = append(names, string(c))
	}
	return FieldError{Field: "category", Message: "category must be one of: " + strings.Join(names, " ")}
}

func checkImages(images []model.Image) error {
	for _, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			return Validation(FieldError{Field: "images", Message: "every image needs a url"})
		}
	}
	return nil
}

// cleanFeatures trims entries and drops blanks, keeping order.
func cleanFeatures(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
