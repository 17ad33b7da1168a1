package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/service"
)

type fakeAuth map[string]model.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, service.Unauthorized("Not authorized, no token")
	}
	if token == "boom" {
		return model.User{}, service.Internal(errors.New("store down"))
	}
	u, ok := f[token]
	if !ok {
		return model.User{}, service.Unauthorized("Not authorized, token failed")
	}
	return u, nil
}

var users = fakeAuth{
	"admin-token":    {ID: "a1", Name: "Admin", Role: model.RoleAdmin, IsActive: true},
	"customer-token": {ID: "c1", Name: "Cust", Role: model.RoleCustomer, IsActive: true},
}

func newCtx(method, target, token string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func identityHandler(got *model.Identity) echo.HandlerFunc {
	return func(c echo.Context) error {
		*got = Identity(c)
		return c.NoContent(http.StatusNoContent)
	}
}

func TestAuthenticate(t *testing.T) {
	mw := Authenticate(users, time.Second)

	var got model.Identity
	c, _ := newCtx(http.MethodGet, "/api/auth/me", "admin-token")
	if err := mw(identityHandler(&got))(c); err != nil {
		t.Fatalf("err = %v", err)
	}
	if got.UserID != "a1" || got.Role != model.RoleAdmin {
		t.Fatalf("identity = %+v", got)
	}

	for _, tok := range []string{"", "forged"} {
		c, _ := newCtx(http.MethodGet, "/api/auth/me", tok)
		err := mw(identityHandler(&got))(c)
		if !errors.Is(err, service.ErrUnauthorized) {
			t.Errorf("token %q: err = %v", tok, err)
		}
	}
}

func TestBearerTokenScheme(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/", "")
	c.Request().Header.Set(echo.HeaderAuthorization, "Basic abc")
	if tok := bearerToken(c); tok != "" {
		t.Fatalf("token = %q", tok)
	}
	c.Request().Header.Set(echo.HeaderAuthorization, "bearer  xyz ")
	if tok := bearerToken(c); tok != "xyz" {
		t.Fatalf("token = %q", tok)
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	mw := OptionalAuthenticate(users, time.Second)

	var got model.Identity
	c, _ := newCtx(http.MethodPost, "/api/messages", "customer-token")
	if err := mw(identityHandler(&got))(c); err != nil || got.UserID != "c1" {
		t.Fatalf("identity = %+v, err = %v", got, err)
	}

	got = model.Identity{UserID: "stale"}
	c, _ = newCtx(http.MethodPost, "/api/messages", "forged")
	if err := mw(identityHandler(&got))(c); err != nil || !got.Anonymous() {
		t.Fatalf("forged token: identity = %+v, err = %v", got, err)
	}

	c, _ = newCtx(http.MethodPost, "/api/messages", "boom")
	if err := mw(identityHandler(&got))(c); err == nil || service.KindOf(err) != service.KindInternal {
		t.Fatalf("store failure: err = %v", err)
	}
}

func TestRequireCapability(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	chain := Authenticate(users, time.Second)(RequireCapability(model.CapManageCatalog)(ok))

	c, rec := newCtx(http.MethodPost, "/api/products", "admin-token")
	if err := chain(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("admin: code = %d, err = %v", rec.Code, err)
	}

	c, _ = newCtx(http.MethodPost, "/api/products", "customer-token")
	if err := chain(c); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("customer: err = %v", err)
	}

	c, _ = newCtx(http.MethodPost, "/api/products", "")
	if err := RequireCapability(model.CapManageCatalog)(ok)(c); !errors.Is(err, service.ErrUnauthorized) {
		t.Fatalf("anonymous: err = %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	chain := Authenticate(users, time.Second)(RequireAdmin()(ok))

	c, _ := newCtx(http.MethodGet, "/api/users", "customer-token")
	var se *service.Error
	if err := chain(c); !errors.As(err, &se) || se.Message != "Access denied. Admin only." {
		t.Fatalf("err = %v", err)
	}
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	mw := RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zerolog.Nop())
	for i := 0; i < 3; i++ {
		c, rec := newCtx(http.MethodGet, "/api/products", "")
		if err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c); err != nil || rec.Code != http.StatusOK {
			t.Fatalf("request %d: code = %d", i, rec.Code)
		}
	}
}

func TestRateKey(t *testing.T) {
	c, _ := newCtx(http.MethodGet, "/api/products", "")
	c.Request().RemoteAddr = "10.0.0.7:5555"
	c.SetPath("/api/products")

	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.7",
		"user":     "rl:user:anon",
		"ip_route": "rl:ip:10.0.0.7:route:GET /api/products",
		"":         "rl:ip:10.0.0.7:user:anon:route:GET /api/products",
	}
	for strategy, want := range cases {
		got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Errorf("%q: got %q, want %q", strategy, got, want)
		}
	}

	SetUser(c, model.User{ID: "u9"})
	if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:u9" {
		t.Errorf("user key = %q", got)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"success":true}` {
		t.Fatalf("decoded %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:6]); ok {
		t.Fatal("short payload decoded")
	}
}

func TestCaptureWriterTruncates(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	if !cw.truncated || cw.buf.Len() != 0 {
		t.Fatalf("truncated = %v, buffered = %d", cw.truncated, cw.buf.Len())
	}
	if rec.Body.String() != "abcdef" {
		t.Fatalf("client body = %q", rec.Body.String())
	}
}

func TestResponseCacheWithoutRedisIsPassThrough(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Groups: map[string]bool{"products": true}}, nil, zerolog.Nop())
	calls := 0
	h := rc.Cache("products")(func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "x")
	})
	for i := 0; i < 2; i++ {
		c, rec := newCtx(http.MethodGet, "/api/products", "")
		if err := h(c); err != nil || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("err = %v, X-Cache = %q", err, rec.Header().Get("X-Cache"))
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
	if err := rc.Purge(context.Background(), "products"); err != nil {
		t.Fatal(err)
	}
}

type recorded struct {
	method, route string
	status        int
}

type requestRecorder struct{ got []recorded }

func (r *requestRecorder) RecordRequest(method, route string, status int, _ time.Duration) {
	r.got = append(r.got, recorded{method, route, status})
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	rr := &requestRecorder{}
	e.Use(RequestID(), RequestLogger(zerolog.New(&buf), rr))
	e.GET("/api/things/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "nope")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/things/7", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("missing request id")
	}
	if len(rr.got) != 1 || rr.got[0] != (recorded{http.MethodGet, "/api/things/:id", http.StatusNotFound}) {
		t.Fatalf("recorded %+v", rr.got)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"status":404`)) {
		t.Fatalf("log = %s", buf.String())
	}
}

func TestTracingKeepsResponse(t *testing.T) {
	e := echo.New()
	e.Use(Tracing())
	e.GET("/ping", func(c echo.Context) error {
		if c.Request().Context() == nil {
			t.Error("nil context")
		}
		return c.String(http.StatusOK, "pong")
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("code = %d body = %q", rec.Code, rec.Body.String())
	}
}
