package memrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

func TestUserStoreEmailUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	if err := s.Create(ctx, &model.User{Name: "a", Email: "Alice@X.com"}); err != nil {
		t.Fatal(err)
	}
	err := s.Create(ctx, &model.User{Name: "b", Email: "alice@x.COM"})
	if !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
	u, err := s.GetByEmail(ctx, " ALICE@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "a" {
		t.Errorf("got %q", u.Name)
	}
}

func TestUserStoreUpdateKeepsHashAndChecksEmail(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()
	a := &model.User{Name: "a", Email: "a@x.com", PasswordHash: "h"}
	b := &model.User{Name: "b", Email: "b@x.com"}
	_ = s.Create(ctx, a)
	_ = s.Create(ctx, b)

	upd := a.Public()
	upd.Name = "A"
	if err := s.Update(ctx, &upd); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetByID(ctx, a.ID)
	if got.PasswordHash != "h" || got.Name != "A" {
		t.Errorf("got %+v", got)
	}

	upd.Email = "b@x.com"
	if err := s.Update(ctx, &upd); !errors.Is(err, repository.ErrEmailExists) {
		t.Errorf("want ErrEmailExists, got %v", err)
	}
}

func TestProductStoreListNewestFirstAndPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Minute) }
	defer func() { now = func() time.Time { return time.Now().UTC() } }()

	for _, n := range []string{"one", "two", "three"} {
		if err := s.Create(ctx, &model.Product{Name: n, Category: model.CategoryOther}); err != nil {
			t.Fatal(err)
		}
	}
	got, total, err := s.List(ctx, repository.ProductFilter{Page: repository.Page{Number: 1, Limit: 2}})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(got) != 2 {
		t.Fatalf("total=%d len=%d", total, len(got))
	}
	if got[0].Name != "three" || got[1].Name != "two" {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}
	got, _, _ = s.List(ctx, repository.ProductFilter{Sort: repository.Sort{Field: repository.SortName, Asc: true}})
	if got[0].Name != "one" || got[2].Name != "two" {
		t.Errorf("name order = %v", []string{got[0].Name, got[1].Name, got[2].Name})
	}
}

func TestProductStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore()
	p := &model.Product{Name: "x", Features: []string{"A", "B"}}
	_ = s.Create(ctx, p)
	p.Features[0] = "Z"

	got, _ := s.GetByID(ctx, p.ID)
	if got.Features[0] != "A" {
		t.Error("store aliased caller slice")
	}
}

func TestMessageStoreStatusFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()
	_ = s.Create(ctx, &model.Message{Subject: "a", Status: model.StatusNew})
	_ = s.Create(ctx, &model.Message{Subject: "b", Status: model.StatusClosed})

	got, total, _ := s.List(ctx, repository.MessageFilter{Status: model.StatusClosed})
	if total != 1 || got[0].Subject != "b" {
		t.Errorf("got %+v", got)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}
