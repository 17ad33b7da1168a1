package service

import (
	"context"
	"errors"
	"testing"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
)

func boolPtr(b bool) *bool { return &b }

func TestProductCreatePopulatesCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")

	p, err := f.svc.Products.Create(ctx, admin, CreateProductInput{Name: "Box", Description: "d", Category: "corrugated"})
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsActive || p.IsFeatured {
		t.Fatalf("defaults wrong: %+v", p)
	}

	list, err := f.svc.Products.List(ctx, model.Identity{}, ProductQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected one product, got %d", len(list.Items))
	}
	got := list.Items[0].CreatedBy
	if got == nil || *got != (model.Creator{Name: "Admin", Email: "root@x.com"}) {
		t.Fatalf("createdBy = %+v", got)
	}
	if list.Paginated() {
		t.Fatal("plain listing should not be paginated")
	}
}

func TestProductCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")

	_, err := f.svc.Products.Create(ctx, admin, CreateProductInput{Name: "Box", Category: "wood"})
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, fe := range se.Fields {
		fields[fe.Field] = true
	}
	if !fields["description"] || !fields["category"] {
		t.Fatalf("fields = %+v", se.Fields)
	}

	cust := f.customer(t, "alice@x.com")
	_, err = f.svc.Products.Create(ctx, cust, CreateProductInput{Name: "Box", Description: "d", Category: "corrugated"})
	wantKind(t, err, KindForbidden)
	_, err = f.svc.Products.Create(ctx, model.Identity{}, CreateProductInput{Name: "Box", Description: "d", Category: "corrugated"})
	wantKind(t, err, KindUnauthorized)
}

func TestProductFeaturesKeepOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")

	p, err := f.svc.Products.Create(ctx, admin, CreateProductInput{
		Name: "Bag", Description: "d", Category: "flexible", Features: []string{"A", "B"},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Products.Get(ctx, model.Identity{}, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Features) != 2 || got.Features[0] != "A" || got.Features[1] != "B" {
		t.Fatalf("features = %v", got.Features)
	}
}

func TestProductPublicListFiltersCategoryAndActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")

	mk := func(name, cat string, active bool) {
		t.Helper()
		if _, err := f.svc.Products.Create(ctx, admin, CreateProductInput{
			Name: name, Description: "d", Category: cat, IsActive: boolPtr(active),
		}); err != nil {
			t.Fatal(err)
		}
	}
	mk("Pellets", "biomass", true)
	mk("Briquettes", "biomass", false)
	mk("Box", "corrugated", true)

	list, err := f.svc.Products.List(ctx, model.Identity{}, ProductQuery{Category: "biomass"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Items) != 1 || list.Items[0].Name != "Pellets" {
		t.Fatalf("public biomass list = %+v", list.Items)
	}
	for _, p := range list.Items {
		if p.Category != model.CategoryBiomass || !p.IsActive {
			t.Fatalf("unexpected product %+v", p)
		}
	}

	// admins see inactive entries
	all, err := f.svc.Products.List(ctx, admin, ProductQuery{Category: "biomass"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("admin list = %d items", len(all.Items))
	}

	// customers and anonymous callers get the same view, even when asking
	cust := f.customer(t, "alice@x.com")
	forced, _ := f.svc.Products.Search(ctx, cust, ProductQuery{Active: boolPtr(false)})
	if forced.Total != 2 {
		t.Fatalf("active filter not forced: total %d", forced.Total)
	}
}

func TestProductSearchDefaultsAndSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	for _, n := range []string{"Alpha box", "Beta bag", "Gamma box"} {
		if _, err := f.svc.Products.Create(ctx, admin, CreateProductInput{Name: n, Description: "d", Category: "other"}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := f.svc.Products.Search(ctx, model.Identity{}, ProductQuery{Search: "BOX"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Page != 1 || res.Limit != DefaultSearchLimit || res.Total != 2 || res.TotalPages != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = f.svc.Products.Search(ctx, model.Identity{}, ProductQuery{
		ListParams: ListParams{Limit: 1000, SortBy: "name", SortAsc: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Limit != MaxSearchLimit || res.Items[0].Name != "Alpha box" || res.Items[2].Name != "Gamma box" {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = f.svc.Products.Search(ctx, model.Identity{}, ProductQuery{ListParams: ListParams{SortBy: "price"}})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Products.List(ctx, model.Identity{}, ProductQuery{Category: "wood"})
	wantKind(t, err, KindValidation)
}

func TestProductGetHidesInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	p, _ := f.svc.Products.Create(ctx, admin, CreateProductInput{Name: "x", Description: "d", Category: "other", IsActive: boolPtr(false)})

	_, err := f.svc.Products.Get(ctx, model.Identity{}, p.ID)
	wantKind(t, err, KindNotFound)
	if _, err := f.svc.Products.Get(ctx, admin, p.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Products.Get(ctx, admin, "missing")
	wantKind(t, err, KindNotFound)
}

func TestProductUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	other := f.admin(t, "ops@x.com")
	p, _ := f.svc.Products.Create(ctx, admin, CreateProductInput{Name: "Box", Description: "d", Category: "corrugated", Features: []string{"A"}})

	name := "Big box"
	feats := []string{"C", "B"}
	up, err := f.svc.Products.Update(ctx, admin, p.ID, UpdateProductInput{Name: &name, Features: &feats, CreatedBy: &other.UserID})
	if err != nil {
		t.Fatal(err)
	}
	if up.Name != "Big box" || up.Features[0] != "C" || up.Description != "d" {
		t.Fatalf("unexpected update %+v", up)
	}
	if up.CreatedBy == nil || up.CreatedBy.Email != "ops@x.com" {
		t.Fatalf("creator not reassigned: %+v", up.CreatedBy)
	}

	bad := "wood"
	_, err = f.svc.Products.Update(ctx, admin, p.ID, UpdateProductInput{Category: &bad})
	wantKind(t, err, KindValidation)
	ghost := "nobody"
	_, err = f.svc.Products.Update(ctx, admin, p.ID, UpdateProductInput{CreatedBy: &ghost})
	wantKind(t, err, KindValidation)
	_, err = f.svc.Products.Update(ctx, admin, "missing", UpdateProductInput{Name: &name})
	wantKind(t, err, KindNotFound)
}

func TestProductDeleteReleasesImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	f.images.Put("allure_impex/a")
	f.images.Put("allure_impex/b")

	p, err := f.svc.Products.Create(ctx, admin, CreateProductInput{
		Name: "Box", Description: "d", Category: "corrugated",
		Images: []model.Image{{URL: "u1", PublicID: "allure_impex/a"}, {URL: "u2", PublicID: "allure_impex/b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Products.Delete(ctx, admin, p.ID); err != nil {
		t.Fatal(err)
	}
	if f.images.Has("allure_impex/a") || f.images.Has("allure_impex/b") {
		t.Fatal("images not released")
	}
	types := f.events.types()
	if types[len(types)-1] != queue.TypeProductDeleted {
		t.Fatalf("events = %v", types)
	}
	wantKind(t, f.svc.Products.Delete(ctx, admin, p.ID), KindNotFound)
}

func TestProductDeleteSucceedsWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	p, _ := f.svc.Products.Create(ctx, admin, CreateProductInput{
		Name: "Box", Description: "d", Category: "corrugated",
		Images: []model.Image{{URL: "u1", PublicID: "allure_impex/a"}},
	})
	f.images.Failing = errors.New("host down")

	if err := f.svc.Products.Delete(ctx, admin, p.ID); err != nil {
		t.Fatalf("delete must not fail on release error: %v", err)
	}
	if _, err := f.stores.Products.GetByID(ctx, p.ID); err == nil {
		t.Fatal("product still stored")
	}
}

func TestProductDeleteRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	p, _ := f.svc.Products.Create(ctx, admin, CreateProductInput{Name: "Box", Description: "d", Category: "corrugated"})
	cust := f.customer(t, "alice@x.com")
	wantKind(t, f.svc.Products.Delete(ctx, cust, p.ID), KindForbidden)
}
