package service

import (
	"context"
	"strings"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// UserService manages accounts on behalf of admins and the users themselves.
type UserService struct {
	users  repository.UserStore
	cost   int
	events *events
}

// UpdateUserInput is a partial profile update. Empty name or email keep
// the stored value.
type UpdateUserInput struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Company  *string `json:"company" validate:"omitempty,max=200"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// CreateAdminInput seeds an admin account.
type CreateAdminInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (s *UserService) List(ctx context.Context, actor model.Identity, p ListParams) (List[model.User], error) {
	if err := requireCap(actor, model.CapManageUsers); err != nil {
		return List[model.User]{}, err
	}
	page, sort := p.repo()
	users, total, err := s.users.List(ctx, repository.UserFilter{Sort: sort, Page: page})
	if err != nil {
		return List[model.User]{}, Internal(err)
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return newList(users, total, page), nil
}

// Get returns a profile to the user themself or an admin.
func (s *UserService) Get(ctx context.Context, actor model.Identity, id string) (model.User, error) {
	if actor.Anonymous() {
		return model.User{}, Unauthorized("Not authorized, no token")
	}
	if !model.CanAccessUser(actor, id) {
		return model.User{}, Forbidden("Not authorized to view this profile")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, storeErr(err, "User")
	}
	return u.Public(), nil
}

// Update applies a partial update. A non-admin sending role fails
// Forbidden; isActive from a non-admin is ignored; nobody can deactivate
// their own account.
func (s *UserService) Update(ctx context.Context, actor model.Identity, id string, in UpdateUserInput) (model.User, error) {
	if actor.Anonymous() {
		return model.User{}, Unauthorized("Not authorized, no token")
	}
	if !model.CanAccessUser(actor, id) {
		return model.User{}, Forbidden("Not authorized to update this user")
	}
	if in.Role != nil && !model.Can(actor, model.CapAssignRoles) {
		return model.User{}, Forbidden("Only admin can change user role")
	}

	in.Name = trimmedOrNil(in.Name)
	in.Email = trimmedOrNil(in.Email)
	if err := check(in); err != nil {
		return model.User{}, err
	}
	patch := model.UserPatch{Name: in.Name, Email: in.Email, Phone: in.Phone, Company: in.Company}
	if in.Role != nil {
		r := model.Role(strings.ToLower(strings.TrimSpace(*in.Role)))
		if !r.Valid() {
			return model.User{}, Validation(FieldError{Field: "role", Message: "role must be one of: customer admin"})
		}
		patch.Role = &r
	}
	if in.IsActive != nil && model.Can(actor, model.CapManageUsers) {
		if !*in.IsActive && actor.IsSelf(id) {
			return model.User{}, BadRequest("Cannot deactivate your own account")
		}
		patch.IsActive = in.IsActive
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, storeErr(err, "User")
	}
	if patch.Empty() {
		return u.Public(), nil
	}
	patch.Apply(&u)
	if err := s.users.Update(ctx, &u); err != nil {
		return model.User{}, storeErr(err, "User")
	}
	return u.Public(), nil
}

// Delete removes an account. Admin only, never the acting admin.
func (s *UserService) Delete(ctx context.Context, actor model.Identity, id string) error {
	if err := requireCap(actor, model.CapManageUsers); err != nil {
		return err
	}
	if actor.IsSelf(id) {
		return BadRequest("Cannot delete your own account")
	}
	return storeErr(s.users.Delete(ctx, id), "User")
}

// CreateAdmin seeds an admin account. It backs the bootstrap endpoint and
// the create-admin command; callers decide whether bootstrap is allowed.
func (s *UserService) CreateAdmin(ctx context.Context, in CreateAdminInput) (model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return model.User{}, err
	}
	u, err := createUser(ctx, s.users, s.cost, model.User{
		Name:  in.Name,
		Email: in.Email,
		Role:  model.RoleAdmin,
	}, in.Password)
	if err != nil {
		return model.User{}, err
	}
	s.events.publish(ctx, queue.TypeUserRegistered, queue.UserRegistered{
		UserID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role),
	})
	return u, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
