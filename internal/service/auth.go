package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
	"github.com/allureimpex/allure-impex-api/internal/utils"
)

// invalidCredentials is shared by the unknown-email and wrong-password
// paths so login does not reveal which accounts exist.
const invalidCredentials = "Invalid credentials"

// AuthService registers users, logs them in and resolves bearer tokens.
type AuthService struct {
	users  repository.UserStore
	tokens *utils.TokenIssuer
	cost   int
	events *events
	log    zerolog.Logger
}

// RegisterInput is the self-service registration form.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Phone    string `json:"phone" validate:"max=32"`
	Company  string `json:"company" validate:"max=200"`
}

// LoginInput is the credential pair.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a freshly issued token with the public user record.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      model.User
}

// Register creates a customer account and signs it in. A duplicate email
// fails with Conflict and creates nothing.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return Session{}, err
	}
	u, err := createUser(ctx, s.users, s.cost, model.User{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   strings.TrimSpace(in.Phone),
		Company: strings.TrimSpace(in.Company),
		Role:    model.RoleCustomer,
	}, in.Password)
	if err != nil {
		return Session{}, err
	}
	s.events.publish(ctx, queue.TypeUserRegistered, queue.UserRegistered{
		UserID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role),
	})
	return s.issue(u)
}

// Login verifies credentials and stamps lastLogin. Unknown email, wrong
// password and inactive accounts all fail with the same Unauthorized
// message.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := check(in); err != nil {
		return Session{}, err
	}
	u, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, Unauthorized(invalidCredentials)
	}
	if err != nil {
		return Session{}, Internal(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) || !u.IsActive {
		return Session{}, Unauthorized(invalidCredentials)
	}

	now := time.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return Session{}, storeErr(err, "User")
	}
	u.LastLogin = &now
	return s.issue(u)
}

// Authenticate resolves a bearer token to the live user record. The role
// and active flag come from the store, never from the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (model.User, error) {
	if strings.TrimSpace(token) == "" {
		return model.User{}, Unauthorized("Not authorized, no token")
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return model.User{}, Unauthorized("Not authorized, token failed")
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, Unauthorized("User not found")
	}
	if err != nil {
		return model.User{}, Internal(err)
	}
	if !u.IsActive {
		return model.User{}, Unauthorized("Account is deactivated")
	}
	return u.Public(), nil
}

// Me returns the profile of the authenticated caller.
func (s *AuthService) Me(ctx context.Context, actor model.Identity) (model.User, error) {
	if actor.Anonymous() {
		return model.User{}, Unauthorized("Not authorized, no token")
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return model.User{}, storeErr(err, "User")
	}
	return u.Public(), nil
}

func (s *AuthService) issue(u model.User) (Session, error) {
	tok, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, Internal(err)
	}
	return Session{Token: tok, ExpiresAt: exp, User: u.Public()}, nil
}

// createUser hashes the password and inserts the record.
func createUser(ctx context.Context, users repository.UserStore, cost int, u model.User, password string) (model.User, error) {
	hash, err := utils.HashPassword(password, cost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return model.User{}, Validation(FieldError{Field: "password", Message: "password must be at most 72 characters"})
	}
	if err != nil {
		return model.User{}, Internal(err)
	}
	u.PasswordHash = hash
	u.IsActive = true
	if err := users.Create(ctx, &u); err != nil {
		return model.User{}, storeErr(err, "User")
	}
	return u.Public(), nil
}
