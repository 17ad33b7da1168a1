// Package memrepo is an in-memory implementation of the repository
// contracts. It backs STORE_DRIVER=memory for local runs and the package
// tests; records live only as long as the process.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

// New returns a Stores bundle whose collections share nothing but the clock.
func New() repository.Stores {
	return repository.Stores{
		Users:    NewUserStore(),
		Products: NewProductStore(),
		Messages: NewMessageStore(),
		Ping:     func(context.Context) error { return nil },
		Close:    func(context.Context) error { return nil },
	}
}

// now is replaced in tests that need distinct timestamps.
var now = func() time.Time { return time.Now().UTC() }

// seq orders records created within the same clock tick.
type seq struct {
	mu sync.Mutex
	n  int64
}

func (s *seq) next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

type entry[T any] struct {
	rec T
	seq int64
}

func page[T any](items []T, p repository.Page) []T {
	if !p.Paginated() {
		return items
	}
	off := p.Offset()
	if off >= len(items) {
		return []T{}
	}
	end := off + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

// less compares two string keys honoring the sort direction; ties fall
// back to insertion order (newest first when descending).
func less(a, b string, sa, sb int64, asc bool) bool {
	if a == b {
		if asc {
			return sa < sb
		}
		return sa > sb
	}
	if asc {
		return a < b
	}
	return a > b
}

func timeKey(t time.Time) string { return t.UTC().Format("2006-01-02T15:04:05.000000000") }

// UserStore keeps users keyed by id with a normalized-email index.
type UserStore struct {
	mu      sync.RWMutex
	seq     seq
	byID    map[string]entry[model.User]
	byEmail map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{byID: map[string]entry[model.User]{}, byEmail: map[string]string{}}
}

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = model.NormalizeEmail(u.Email)
	if _, ok := s.byEmail[u.Email]; ok {
		return repository.ErrEmailExists
	}
	u.ID = uuid.NewString()
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt
	s.byID[u.ID] = entry[model.User]{rec: *u, seq: s.seq.next()}
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return e.rec, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[model.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) List(_ context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	s.mu.RLock()
	all := make([]entry[model.User], 0, len(s.byID))
	for _, e := range s.byID {
		all = append(all, e)
	}
	s.mu.RUnlock()

	field := f.Sort.FieldOr(repository.SortCreatedAt)
	key := func(u model.User) string {
		switch field {
		case repository.SortName:
			return strings.ToLower(u.Name)
		case repository.SortUpdatedAt:
			return timeKey(u.UpdatedAt)
		default:
			return timeKey(u.CreatedAt)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return less(key(all[i].rec), key(all[j].rec), all[i].seq, all[j].seq, f.Sort.Asc)
	})
	out := make([]model.User, 0, len(all))
	for _, e := range all {
		out = append(out, e.rec)
	}
	return page(out, f.Page), int64(len(out)), nil
}

func (s *UserStore) Update(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Email = model.NormalizeEmail(u.Email)
	if owner, taken := s.byEmail[u.Email]; taken && owner != u.ID {
		return repository.ErrEmailExists
	}
	delete(s.byEmail, e.rec.Email)
	s.byEmail[u.Email] = u.ID
	u.CreatedAt = e.rec.CreatedAt
	u.UpdatedAt = now()
	if u.PasswordHash == "" {
		u.PasswordHash = e.rec.PasswordHash
	}
	e.rec = *u
	s.byID[u.ID] = e
	return nil
}

func (s *UserStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	at = at.UTC()
	e.rec.LastLogin = &at
	s.byID[id] = e
	return nil
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(s.byEmail, e.rec.Email)
	delete(s.byID, id)
	return nil
}

func (s *UserStore) Creators(_ context.Context, ids []string) (map[string]model.Creator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Creator, len(ids))
	for _, id := range ids {
		if e, ok := s.byID[id]; ok {
			out[id] = model.Creator{Name: e.rec.Name, Email: e.rec.Email}
		}
	}
	return out, nil
}

// ProductStore keeps products keyed by id.
type ProductStore struct {
	mu   sync.RWMutex
	seq  seq
	byID map[string]entry[model.Product]
}

func NewProductStore() *ProductStore {
	return &ProductStore{byID: map[string]entry[model.Product]{}}
}

func cloneProduct(p model.Product) model.Product {
	p.Features = append([]string(nil), p.Features...)
	p.Images = append([]model.Image(nil), p.Images...)
	specs := make(map[string]string, len(p.Specifications))
	for k, v := range p.Specifications {
		specs[k] = v
	}
	p.Specifications = specs
	p.CreatedBy = nil
	p.Normalize()
	return p
}

func (s *ProductStore) Create(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	s.byID[p.ID] = entry[model.Product]{rec: cloneProduct(*p), seq: s.seq.next()}
	return nil
}

func (s *ProductStore) GetByID(_ context.Context, id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return cloneProduct(e.rec), nil
}

func (s *ProductStore) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	s.mu.RLock()
	matched := make([]entry[model.Product], 0, len(s.byID))
	for _, e := range s.byID {
		if repository.MatchesProduct(e.rec, f) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	field := f.Sort.FieldOr(repository.SortCreatedAt)
	key := func(p model.Product) string {
		switch field {
		case repository.SortName:
			return strings.ToLower(p.Name)
		case repository.SortCategory:
			return string(p.Category)
		case repository.SortUpdatedAt:
			return timeKey(p.UpdatedAt)
		default:
			return timeKey(p.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return less(key(matched[i].rec), key(matched[j].rec), matched[i].seq, matched[j].seq, f.Sort.Asc)
	})
	out := make([]model.Product, 0, len(matched))
	for _, e := range matched {
		out = append(out, cloneProduct(e.rec))
	}
	return page(out, f.Page), int64(len(out)), nil
}

func (s *ProductStore) Update(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.CreatedAt = e.rec.CreatedAt
	p.UpdatedAt = now()
	e.rec = cloneProduct(*p)
	s.byID[p.ID] = e
	return nil
}

func (s *ProductStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// MessageStore keeps contact messages keyed by id.
type MessageStore struct {
	mu   sync.RWMutex
	seq  seq
	byID map[string]entry[model.Message]
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byID: map[string]entry[model.Message]{}}
}

func (s *MessageStore) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.CreatedAt = now()
	m.UpdatedAt = m.CreatedAt
	s.byID[m.ID] = entry[model.Message]{rec: *m, seq: s.seq.next()}
	return nil
}

func (s *MessageStore) GetByID(_ context.Context, id string) (model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.Message{}, repository.ErrNotFound
	}
	return e.rec, nil
}

func (s *MessageStore) List(_ context.Context, f repository.MessageFilter) ([]model.Message, int64, error) {
	s.mu.RLock()
	matched := make([]entry[model.Message], 0, len(s.byID))
	for _, e := range s.byID {
		if f.Status == "" || e.rec.Status == f.Status {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	field := f.Sort.FieldOr(repository.SortCreatedAt)
	key := func(m model.Message) string {
		switch field {
		case repository.SortStatus:
			return string(m.Status)
		case repository.SortUpdatedAt:
			return timeKey(m.UpdatedAt)
		default:
			return timeKey(m.CreatedAt)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return less(key(matched[i].rec), key(matched[j].rec), matched[i].seq, matched[j].seq, f.Sort.Asc)
	})
	out := make([]model.Message, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.rec)
	}
	return page(out, f.Page), int64(len(out)), nil
}

func (s *MessageStore) Update(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	m.CreatedAt = e.rec.CreatedAt
	m.UpdatedAt = now()
	e.rec = *m
	s.byID[m.ID] = e
	return nil
}

func (s *MessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}
