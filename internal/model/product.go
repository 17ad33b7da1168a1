package model

import "time"

// Category is the closed set of product categories.
type Category string

const (
	CategoryCorrugated Category = "corrugated"
	CategoryFlexible   Category = "flexible"
	CategoryPaperCore  Category = "paper-core"
	CategoryBiomass    Category = "biomass"
	CategoryPlastics   Category = "plastics"
	CategoryOther      Category = "other"
)

// Categories lists every valid product category in display order.
func Categories() []Category {
	return []Category{
		CategoryCorrugated, CategoryFlexible, CategoryPaperCore,
		CategoryBiomass, CategoryPlastics, CategoryOther,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Image references an object held by the external image host.
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Alt      string `json:"alt"`
}

// Creator is the populated view of a product's creator: name and email only.
type Creator struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Product is a catalog entry.
type Product struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Category       Category          `json:"category"`
	Subcategory    string            `json:"subcategory,omitempty"`
	Features       []string          `json:"features"`
	Images         []Image           `json:"images"`
	Specifications map[string]string `json:"specifications"`
	IsActive       bool              `json:"isActive"`
	IsFeatured     bool              `json:"isFeatured"`
	CreatedByID    string            `json:"-"`
	CreatedBy      *Creator          `json:"createdBy"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Normalize replaces nil collections with empty ones so JSON output is
// stable ([] and {} rather than null).
func (p *Product) Normalize() {
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Images == nil {
		p.Images = []Image{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
}

// ProductPatch is a partial update of a Product. Nil fields are left
// unchanged; non-nil slices and maps replace the stored value.
type ProductPatch struct {
	Name           *string
	Description    *string
	Category       *Category
	Subcategory    *string
	Features       *[]string
	Images         *[]Image
	Specifications *map[string]string
	IsActive       *bool
	IsFeatured     *bool
	CreatedByID    *string
}

// Apply writes the non-nil fields of the patch onto p.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Subcategory != nil {
		p.Subcategory = *pp.Subcategory
	}
	if pp.Features != nil {
		p.Features = append([]string(nil), (*pp.Features)...)
	}
	if pp.Images != nil {
		p.Images = append([]Image(nil), (*pp.Images)...)
	}
	if pp.Specifications != nil {
		m := make(map[string]string, len(*pp.Specifications))
		for k, v := range *pp.Specifications {
			m[k] = v
		}
		p.Specifications = m
	}
	if pp.IsActive != nil {
		p.IsActive = *pp.IsActive
	}
	if pp.IsFeatured != nil {
		p.IsFeatured = *pp.IsFeatured
	}
	if pp.CreatedByID != nil {
		p.CreatedByID = *pp.CreatedByID
	}
	p.Normalize()
}
