package repository

import (
	"testing"

	"github.com/allureimpex/allure-impex-api/internal/model"
)

func TestPageOffset(t *testing.T) {
	cases := []struct {
		p    Page
		want int
	}{
		{Page{Number: 1, Limit: 12}, 0},
		{Page{Number: 3, Limit: 12}, 24},
		{Page{Number: 0, Limit: 12}, 0},
		{Page{Number: 5, Limit: 0}, 0},
	}
	for _, c := range cases {
		if got := c.p.Offset(); got != c.want {
			t.Errorf("%+v.Offset() = %d, want %d", c.p, got, c.want)
		}
	}
}

func TestMatchesSearch(t *testing.T) {
	p := model.Product{
		Name:        "Kraft Box",
		Description: "double wall",
		Category:    model.CategoryCorrugated,
		Subcategory: "RSC",
		Features:    []string{"Food Grade"},
	}
	for _, q := range []string{"", "kraft", "WALL", "corrug", "rsc", "food grade"} {
		if !MatchesSearch(p, q) {
			t.Errorf("%q should match", q)
		}
	}
	if MatchesSearch(p, "pellet") {
		t.Error("pellet should not match")
	}
}

func TestMatchesProduct(t *testing.T) {
	yes, no := true, false
	p := model.Product{Name: "Pellets", Category: model.CategoryBiomass, IsActive: true}

	if !MatchesProduct(p, ProductFilter{Category: model.CategoryBiomass, Active: &yes}) {
		t.Error("category+active should match")
	}
	if MatchesProduct(p, ProductFilter{Category: model.CategoryPlastics}) {
		t.Error("wrong category matched")
	}
	if MatchesProduct(p, ProductFilter{Active: &no}) {
		t.Error("inactive filter matched active product")
	}
	if MatchesProduct(p, ProductFilter{Featured: &yes}) {
		t.Error("featured filter matched non-featured product")
	}
}
