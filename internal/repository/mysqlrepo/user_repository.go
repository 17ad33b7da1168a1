package mysqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// UserRepo mirrors the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,password_hash,phone,company,role,is_active,last_login,created_at,updated_at"

var userSortColumns = map[string]string{
	repository.SortCreatedAt: "created_at",
	repository.SortUpdatedAt: "updated_at",
	repository.SortName:      "name",
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(r rowScanner) (model.User, error) {
	var (
		u         model.User
		role      string
		lastLogin sql.NullTime
	)
	err := r.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Company,
		&role, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		u.LastLogin = &t
	}
	return u, nil
}

// Create inserts the user with a fresh uuid.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.NewString()
	u.Email = model.NormalizeEmail(u.Email)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, u.Company, string(u.Role), u.IsActive,
		u.LastLogin, u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return repository.ErrEmailExists
	}
	return err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email)))
	return u, notFound(err)
}

func (r *UserRepo) List(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, args := limitClause(f.Page, nil)
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+orderBy(f.Sort, userSortColumns)+limit, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update writes the mutable profile fields.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	u.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, email=?, phone=?, company=?, role=?, is_active=?, updated_at=? WHERE id=?",
		u.Name, u.Email, u.Phone, u.Company, string(u.Role), u.IsActive, u.UpdatedAt, u.ID)
	if isDuplicate(err) {
		return repository.ErrEmailExists
	}
	return affected(res, err)
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", at.UTC(), id)
	return affected(res, err)
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	return affected(res, err)
}

// Creators resolves ids to {name,email}.
func (r *UserRepo) Creators(ctx context.Context, ids []string) (map[string]model.Creator, error) {
	out := make(map[string]model.Creator, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,email FROM users WHERE id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var c model.Creator
		if err := rows.Scan(&id, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, rows.Err()
}
