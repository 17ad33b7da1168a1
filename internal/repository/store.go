package repository

import (
	"context"
	"time"

	"github.com/allureimpex/allure-impex-api/internal/model"
)

// UserStore is the credential store.
type UserStore interface {
	// Create assigns ID and timestamps. Returns ErrEmailExists on a
	// duplicate normalized email.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	// GetByEmail looks the user up by normalized email.
	GetByEmail(ctx context.Context, email string) (model.User, error)
	List(ctx context.Context, f UserFilter) ([]model.User, int64, error)
	// Update overwrites the mutable profile fields and refreshes UpdatedAt.
	Update(ctx context.Context, u *model.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// Creators resolves user ids to their populated creator view. Unknown
	// ids are absent from the result.
	Creators(ctx context.Context, ids []string) (map[string]model.Creator, error)
}

// ProductStore persists catalog entries.
type ProductStore interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id string) (model.Product, error)
	List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id string) error
}

// MessageStore persists contact-form submissions.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (model.Message, error)
	List(ctx context.Context, f MessageFilter) ([]model.Message, int64, error)
	Update(ctx context.Context, m *model.Message) error
	Delete(ctx context.Context, id string) error
}

// Stores bundles the collections of one driver.
type Stores struct {
	Users    UserStore
	Products ProductStore
	Messages MessageStore

	// Ping reports store reachability for the health endpoint.
	Ping func(ctx context.Context) error
	// Close releases driver resources.
	Close func(ctx context.Context) error
}
