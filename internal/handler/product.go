package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/allureimpex/allure-impex-api/internal/middleware"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// ProductHandler serves /api/products.
type ProductHandler struct {
	products *service.ProductService
	timeout  timeout
}

func NewProductHandler(s *service.ProductService, d time.Duration) *ProductHandler {
	return &ProductHandler{products: s, timeout: timeout(d)}
}

// List: category, featured=true and search filters; paginated only when
// page or limit is given.
func (h *ProductHandler) List(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return err
	}
	q := service.ProductQuery{
		Search:     strings.TrimSpace(c.QueryParam("search")),
		Category:   strings.TrimSpace(c.QueryParam("category")),
		ListParams: p,
	}
	if c.QueryParam("featured") == "true" {
		t := true
		q.Featured = &t
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	l, err := h.products.List(ctx, middleware.Identity(c), q)
	if err != nil {
		return err
	}
	return list(c, l)
}

// Search is GET /search/advanced.
func (h *ProductHandler) Search(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return err
	}
	q := service.ProductQuery{
		Search:      strings.TrimSpace(c.QueryParam("q")),
		Category:    strings.TrimSpace(c.QueryParam("category")),
		Subcategory: strings.TrimSpace(c.QueryParam("subcategory")),
		Featured:    boolParam(c, "featured"),
		Active:      boolParam(c, "active"),
		ListParams:  p,
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	l, err := h.products.Search(ctx, middleware.Identity(c), q)
	if err != nil {
		return err
	}
	return list(c, l)
}

func (h *ProductHandler) Get(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	p, err := h.products.Get(ctx, middleware.Identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", p)
}

func (h *ProductHandler) Create(c echo.Context) error {
	var in service.CreateProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	p, err := h.products.Create(ctx, middleware.Identity(c), in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "Product created successfully", p)
}

func (h *ProductHandler) Update(c echo.Context) error {
	var in service.UpdateProductInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	p, err := h.products.Update(ctx, middleware.Identity(c), c.Param("id"), in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Product updated successfully", p)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	ctx, cancel := h.timeout.ctx(c)
	defer cancel()

	if err := h.products.Delete(ctx, middleware.Identity(c), c.Param("id")); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "Product deleted successfully", nil)
}
