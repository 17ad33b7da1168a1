package mysqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// ProductRepo mirrors the 'products' table.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id,name,description,category,subcategory,features,images,specifications,is_active,is_featured,created_by,created_at,updated_at"

var productSortColumns = map[string]string{
	repository.SortCreatedAt: "created_at",
	repository.SortUpdatedAt: "updated_at",
	repository.SortName:      "name",
	repository.SortCategory:  "category",
}

// productJSON holds the encoded JSON columns of a product.
type productJSON struct {
	features, images, specs []byte
}

func encodeProduct(p *model.Product) (productJSON, error) {
	p.Normalize()
	var (
		out productJSON
		err error
	)
	if out.features, err = json.Marshal(p.Features); err != nil {
		return out, err
	}
	if out.images, err = json.Marshal(p.Images); err != nil {
		return out, err
	}
	out.specs, err = json.Marshal(p.Specifications)
	return out, err
}

func scanProduct(r rowScanner) (model.Product, error) {
	var (
		p        model.Product
		category string
		j        productJSON
	)
	err := r.Scan(&p.ID, &p.Name, &p.Description, &category, &p.Subcategory,
		&j.features, &j.images, &j.specs, &p.IsActive, &p.IsFeatured, &p.CreatedByID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	p.Category = model.Category(category)
	if err := json.Unmarshal(j.features, &p.Features); err != nil {
		return model.Product{}, err
	}
	if err := json.Unmarshal(j.images, &p.Images); err != nil {
		return model.Product{}, err
	}
	if err := json.Unmarshal(j.specs, &p.Specifications); err != nil {
		return model.Product{}, err
	}
	p.Normalize()
	return p, nil
}

func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	j, err := encodeProduct(p)
	if err != nil {
		return err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)",
		p.ID, p.Name, p.Description, string(p.Category), p.Subcategory,
		j.features, j.images, j.specs, p.IsActive, p.IsFeatured, p.CreatedByID,
		p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
	return p, notFound(err)
}

// productWhere builds the WHERE clause for a filter. The search predicate
// is the SQL form of repository.MatchesSearch.
func productWhere(f repository.ProductFilter) (string, []any) {
	where := []string{}
	args := []any{}

	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.Subcategory != "" {
		where = append(where, "subcategory = ?")
		args = append(args, f.Subcategory)
	}
	if f.Featured != nil {
		where = append(where, "is_featured = ?")
		args = append(args, *f.Featured)
	}
	if f.Active != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.Active)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		pat := likePattern(q)
		where = append(where, `(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?
			OR LOWER(subcategory) LIKE ? OR JSON_SEARCH(LOWER(CAST(features AS CHAR)), 'one', ?) IS NOT NULL)`)
		args = append(args, pat, pat, pat, pat, pat)
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *ProductRepo) List(ctx context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	cond, args := productWhere(f)

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, argsData := limitClause(f.Page, append([]any{}, args...))
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products"+cond+orderBy(f.Sort, productSortColumns)+limit, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	j, err := encodeProduct(p)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE products SET name=?, description=?, category=?, subcategory=?, features=?, images=?,
			specifications=?, is_active=?, is_featured=?, created_by=?, updated_at=? WHERE id=?`,
		p.Name, p.Description, string(p.Category), p.Subcategory, j.features, j.images, j.specs,
		p.IsActive, p.IsFeatured, p.CreatedByID, p.UpdatedAt, p.ID)
	return affected(res, err)
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id=?", id)
	return affected(res, err)
}
