// Package router wires the handlers, middleware and route table of the API.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/handler"
	"github.com/allureimpex/allure-impex-api/internal/metrics"
	"github.com/allureimpex/allure-impex-api/internal/middleware"
	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

// Version is reported by the banner.
const Version = "1.0.0"

const productsGroup = "products"

// Deps are the collaborators of the HTTP layer. Redis, Metrics and
// Gatherer are optional.
type Deps struct {
	Config    config.Config
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Services  *service.Services
	Ping      func(ctx context.Context) error
	Log       zerolog.Logger
	Redis     *redis.Client
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log, d.Config.StackTraces())

	var rec middleware.RequestRecorder
	if d.Metrics != nil {
		rec = d.Metrics
	}
	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(d.Log, rec),
		echomw.Recover(),
		middleware.Tracing(),
		echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.Config.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		}),
		middleware.RateLimit(d.RateLimit, d.Redis, d.Log),
	)

	health := handler.NewHealthHandler(d.Ping, Version)
	e.GET("/", health.Banner)
	e.GET("/api/health", health.Health)
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	Register(e.Group("/api"), d)
	return e
}

// Register mounts the resource routes on api.
func Register(api *echo.Group, d Deps) {
	s := d.Services
	dbTimeout := d.Config.DBTimeout
	authn := middleware.Authenticate(s.Auth, dbTimeout)
	optional := middleware.OptionalAuthenticate(s.Auth, dbTimeout)
	jsonLimit := echomw.BodyLimit("1M")

	auth := handler.NewAuthHandler(s.Auth, dbTimeout)
	a := api.Group("/auth", jsonLimit)
	a.POST("/register", auth.Register)
	a.POST("/login", auth.Login)
	a.GET("/me", auth.Me, authn)

	cache := middleware.NewResponseCache(d.Cache, d.Redis, d.Log)
	products := handler.NewProductHandler(s.Products, dbTimeout)
	manageCatalog := middleware.RequireCapability(model.CapManageCatalog)
	p := api.Group("/products", jsonLimit, cache.Cache(productsGroup), cache.PurgeOnWrite(productsGroup))
	p.GET("", products.List, optional)
	p.GET("/search/advanced", products.Search, optional)
	p.GET("/:id", products.Get, optional)
	p.POST("", products.Create, authn, manageCatalog)
	p.PUT("/:id", products.Update, authn, manageCatalog)
	p.DELETE("/:id", products.Delete, authn, manageCatalog)

	users := handler.NewUserHandler(s.Users, dbTimeout)
	u := api.Group("/users", jsonLimit)
	if d.Config.BootstrapEnabled() {
		u.POST("/create-admin", users.CreateAdmin)
		d.Log.Warn().Msg("admin bootstrap endpoint enabled")
	}
	u.GET("", users.List, authn, middleware.RequireAdmin())
	u.GET("/:id", users.Get, authn)
	// listings embed the creator's name and email
	creatorChanged := cache.PurgeOnWrite(productsGroup)
	u.PUT("/:id", users.Update, authn, creatorChanged)
	u.DELETE("/:id", users.Delete, authn, middleware.RequireAdmin(), creatorChanged)

	messages := handler.NewMessageHandler(s.Messages, dbTimeout)
	manageMessages := middleware.RequireCapability(model.CapManageMessages)
	m := api.Group("/messages", jsonLimit)
	m.POST("", messages.Create, optional)
	m.GET("", messages.List, authn, manageMessages)
	m.GET("/:id", messages.Get, authn, manageMessages)
	m.PUT("/:id/read", messages.MarkRead, authn, manageMessages)
	m.PUT("/:id/reply", messages.Reply, authn, manageMessages)
	m.PUT("/:id/close", messages.Close, authn, manageMessages)
	m.DELETE("/:id", messages.Delete, authn, manageMessages)

	uploads := handler.NewUploadHandler(s.Uploads)
	up := api.Group("/uploads", echomw.BodyLimit(uploadLimit(d.Config.UploadMaxBytes)))
	up.POST("", uploads.Upload, authn)
	up.POST("/multiple", uploads.UploadMany, authn)
	up.DELETE("/*", uploads.Delete, authn, middleware.RequireCapability(model.CapDeleteUploads))
}

// uploadLimit allows a full multiple upload plus multipart overhead.
func uploadLimit(perFile int64) string {
	if perFile <= 0 {
		perFile = 10 << 20
	}
	total := perFile*service.MaxFilesPerUpload + 1<<20
	return fmt.Sprintf("%dK", total>>10)
}

// Shutdown drains in-flight requests within timeout.
func Shutdown(e *echo.Echo, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.Shutdown(ctx)
}
