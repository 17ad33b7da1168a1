package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/imagehost"
	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
	"github.com/allureimpex/allure-impex-api/internal/utils"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Stores     repository.Stores
	Tokens     *utils.TokenIssuer
	BcryptCost int
	Images     imagehost.Host // nil when no image host is configured
	Events     queue.Publisher
	Log        zerolog.Logger
	Metrics    Recorder // optional

	UploadMaxBytes int64
	ImageTimeout   time.Duration
}

// Recorder receives outcome counts for background side effects.
type Recorder interface {
	RecordEvent(typ string, err error)
	RecordImageRelease(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(string, error) {}
func (nopRecorder) RecordImageRelease(error)  {}

// Services bundles the resource services.
type Services struct {
	Auth     *AuthService
	Users    *UserService
	Products *ProductService
	Messages *MessageService
	Uploads  *UploadService
}

// New wires every service over the same dependencies.
func New(d Deps) *Services {
	if d.Events == nil {
		d.Events = queue.Nop{}
	}
	if d.ImageTimeout <= 0 {
		d.ImageTimeout = 20 * time.Second
	}
	if d.UploadMaxBytes <= 0 {
		d.UploadMaxBytes = 10 << 20
	}
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	ev := &events{pub: d.Events, log: d.Log, rec: d.Metrics}
	return &Services{
		Auth:     &AuthService{users: d.Stores.Users, tokens: d.Tokens, cost: d.BcryptCost, events: ev, log: d.Log},
		Users:    &UserService{users: d.Stores.Users, cost: d.BcryptCost, events: ev},
		Products: &ProductService{products: d.Stores.Products, users: d.Stores.Users, images: d.Images, imageTimeout: d.ImageTimeout, events: ev, log: d.Log, rec: d.Metrics},
		Messages: &MessageService{messages: d.Stores.Messages, events: ev},
		Uploads:  &UploadService{images: d.Images, maxBytes: d.UploadMaxBytes, timeout: d.ImageTimeout, log: d.Log},
	}
}

// events publishes best-effort: failures are logged and never returned.
type events struct {
	pub queue.Publisher
	log zerolog.Logger
	rec Recorder
}

const publishTimeout = 5 * time.Second

func (e *events) publish(ctx context.Context, typ string, payload any) {
	ev, err := queue.NewEvent(typ, payload)
	if err != nil {
		e.log.Warn().Err(err).Str("type", typ).Msg("event encode failed")
		return
	}
	// detached from request cancellation; bounded by its own timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err = e.pub.Publish(ctx, ev)
	e.rec.RecordEvent(typ, err)
	if err != nil {
		e.log.Warn().Err(err).Str("type", typ).Str("event_id", ev.ID).Msg("event publish failed")
	}
}

// storeErr converts repository failures into service errors. what names
// the resource in the NotFound message.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return NotFound(what + " not found")
	case errors.Is(err, repository.ErrEmailExists):
		return Conflict("User already exists with this email")
	default:
		var se *Error
		if errors.As(err, &se) {
			return err
		}
		return Internal(err)
	}
}

// ListParams are the pagination and sort options shared by List calls.
type ListParams struct {
	Page    int
	Limit   int
	SortBy  string
	SortAsc bool
}

func (p ListParams) repo() (repository.Page, repository.Sort) {
	return repository.Page{Number: p.Page, Limit: p.Limit}, repository.Sort{Field: p.SortBy, Asc: p.SortAsc}
}

// List is one page of results. Page and TotalPages are zero when the
// request was not paginated.
type List[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// Paginated reports whether page metadata should be returned.
func (l List[T]) Paginated() bool { return l.Limit > 0 }

func newList[T any](items []T, total int64, p repository.Page) List[T] {
	l := List[T]{Items: items, Total: total}
	if p.Paginated() {
		l.Limit = p.Limit
		l.Page = p.Number
		if l.Page < 1 {
			l.Page = 1
		}
		l.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return l
}

func requireCap(id model.Identity, c model.Capability) error {
	if id.Anonymous() {
		return Unauthorized("Not authorized, no token")
	}
	if !model.Can(id, c) {
		return Forbidden("Access denied. Admin only.")
	}
	return nil
}
