package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/imagehost"
	"github.com/allureimpex/allure-impex-api/internal/metrics"
	"github.com/allureimpex/allure-impex-api/internal/repository/memrepo"
	"github.com/allureimpex/allure-impex-api/internal/service"
	"github.com/allureimpex/allure-impex-api/internal/utils"
)

type api struct {
	t      *testing.T
	e      *echo.Echo
	images *imagehost.Memory
}

type body struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Token      string          `json:"token"`
	User       json.RawMessage `json:"user"`
	Count      *int            `json:"count"`
	Total      *int64          `json:"total"`
	Page       *int            `json:"page"`
	TotalPages *int            `json:"totalPages"`
	Data       json.RawMessage `json:"data"`
	Errors     []struct {
		Field string `json:"field"`
	} `json:"errors"`
	Stack string `json:"stack"`
}

func newAPI(t *testing.T, mutate func(*config.Config)) *api {
	t.Helper()
	return newAPIWith(t, mutate, nil)
}

func newAPIWith(t *testing.T, mutate func(*config.Config), extra func(*Deps)) *api {
	t.Helper()
	cfg := config.Config{
		Env:                 "test",
		CORSOrigins:         []string{"http://localhost:3000"},
		AllowAdminBootstrap: true,
		DBTimeout:           time.Second,
		UploadMaxBytes:      1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	stores := memrepo.New()
	images := imagehost.NewMemory("allure_impex")
	reg := prometheus.NewRegistry()
	col := metrics.NewCollector(reg)
	svc := service.New(service.Deps{
		Stores:         stores,
		Tokens:         utils.NewTokenIssuer("test-secret", time.Hour),
		BcryptCost:     bcrypt.MinCost,
		Images:         images,
		Log:            zerolog.Nop(),
		Metrics:        col,
		UploadMaxBytes: cfg.UploadMaxBytes,
		ImageTimeout:   time.Second,
	})
	d := Deps{
		Config:   cfg,
		Services: svc,
		Ping:     stores.Ping,
		Log:      zerolog.Nop(),
		Metrics:  col,
		Gatherer: reg,
	}
	if extra != nil {
		extra(&d)
	}
	e := New(d)
	return &api{t: t, e: e, images: images}
}

func (a *api) do(method, path, token string, payload any) (int, body) {
	a.t.Helper()
	var rd *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			a.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return a.send(req, token)
}

func (a *api) send(req *http.Request, token string) (int, body) {
	a.t.Helper()
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	var b body
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL, rec.Body.String(), err)
		}
	}
	return rec.Code, b
}

func (a *api) register(name, email string) (token, id string) {
	a.t.Helper()
	code, b := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret1",
	})
	if code != http.StatusCreated || b.Token == "" {
		a.t.Fatalf("register %s: %d %+v", email, code, b)
	}
	var u struct{ ID string }
	_ = json.Unmarshal(b.User, &u)
	return b.Token, u.ID
}

func (a *api) admin() (token, id string) {
	a.t.Helper()
	code, b := a.do(http.MethodPost, "/api/users/create-admin", "", map[string]string{
		"name": "Admin", "email": "admin@allure.test", "password": "secret1",
	})
	if code != http.StatusCreated {
		a.t.Fatalf("create-admin: %d %+v", code, b)
	}
	code, b = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "admin@allure.test", "password": "secret1",
	})
	if code != http.StatusOK {
		a.t.Fatalf("admin login: %d %+v", code, b)
	}
	var u struct{ ID string }
	_ = json.Unmarshal(b.User, &u)
	return b.Token, u.ID
}

func (a *api) product(token string, in map[string]any) string {
	a.t.Helper()
	code, b := a.do(http.MethodPost, "/api/products", token, in)
	if code != http.StatusCreated {
		a.t.Fatalf("create product: %d %+v", code, b)
	}
	var p struct{ ID string }
	_ = json.Unmarshal(b.Data, &p)
	return p.ID
}

func TestRegisterLoginMe(t *testing.T) {
	a := newAPI(t, nil)
	token, id := a.register("Jane", "Jane@Example.com")

	code, b := a.do(http.MethodGet, "/api/auth/me", token, nil)
	if code != http.StatusOK || !b.Success {
		t.Fatalf("me: %d %+v", code, b)
	}
	if bytes.Contains(b.Data, []byte("password")) {
		t.Fatalf("profile leaks password: %s", b.Data)
	}
	var me struct{ ID, Email, Role string }
	_ = json.Unmarshal(b.Data, &me)
	if me.ID != id || me.Email != "jane@example.com" || me.Role != "customer" {
		t.Fatalf("me = %+v", me)
	}

	code, b = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "secret1"})
	if code != http.StatusOK || b.Token == "" || b.Message != "Login successful" {
		t.Fatalf("login: %d %+v", code, b)
	}
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	a := newAPI(t, nil)
	a.register("Jane", "jane@example.com")

	for _, creds := range []map[string]string{
		{"email": "jane@example.com", "password": "wrong-pass"},
		{"email": "nobody@example.com", "password": "secret1"},
	} {
		code, b := a.do(http.MethodPost, "/api/auth/login", "", creds)
		if code != http.StatusUnauthorized || b.Success || b.Message != "Invalid credentials" {
			t.Errorf("%v: %d %+v", creds, code, b)
		}
	}
}

func TestDuplicateEmail(t *testing.T) {
	a := newAPI(t, nil)
	a.register("Jane", "jane@example.com")
	code, b := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Jane 2", "email": "JANE@example.com", "password": "secret1",
	})
	if code != http.StatusBadRequest || b.Message != "User already exists with this email" {
		t.Fatalf("duplicate: %d %+v", code, b)
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newAPI(t, nil)
	code, b := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email", "password": "123"})
	if code != http.StatusBadRequest || len(b.Errors) < 3 {
		t.Fatalf("validation: %d %+v", code, b)
	}
}

func TestMissingAndForgedTokens(t *testing.T) {
	a := newAPI(t, nil)
	code, b := a.do(http.MethodGet, "/api/auth/me", "", nil)
	if code != http.StatusUnauthorized || b.Message != "Not authorized, no token" {
		t.Fatalf("no token: %d %+v", code, b)
	}
	code, b = a.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	if code != http.StatusUnauthorized || b.Message != "Not authorized, token failed" {
		t.Fatalf("forged: %d %+v", code, b)
	}
}

func TestProductCatalog(t *testing.T) {
	a := newAPI(t, nil)
	admin, _ := a.admin()
	customer, _ := a.register("Cust", "cust@example.com")

	in := map[string]any{
		"name": "Kraft Box", "description": "Five ply", "category": "corrugated",
		"features": []string{"Strong", "Recyclable", "Printable"},
	}
	code, _ := a.do(http.MethodPost, "/api/products", customer, in)
	if code != http.StatusForbidden {
		t.Fatalf("customer create: %d", code)
	}
	boxID := a.product(admin, in)
	a.product(admin, map[string]any{"name": "Pouch", "description": "Stand up", "category": "flexible"})
	a.product(admin, map[string]any{"name": "Hidden", "description": "Draft", "category": "flexible", "isActive": false})

	code, b := a.do(http.MethodGet, "/api/products", "", nil)
	if code != http.StatusOK || b.Count == nil || *b.Count != 2 {
		t.Fatalf("public list: %d %+v", code, b)
	}
	var items []struct {
		Name      string
		Features  []string
		CreatedBy *struct{ Name, Email string }
	}
	_ = json.Unmarshal(b.Data, &items)
	for _, p := range items {
		if p.CreatedBy == nil || p.CreatedBy.Email != "admin@allure.test" {
			t.Fatalf("createdBy not populated: %+v", p)
		}
		if p.Name == "Kraft Box" && strings.Join(p.Features, ",") != "Strong,Recyclable,Printable" {
			t.Fatalf("features = %v", p.Features)
		}
	}

	_, b = a.do(http.MethodGet, "/api/products?category=flexible", "", nil)
	if *b.Count != 1 {
		t.Fatalf("category filter count = %d", *b.Count)
	}

	_, b = a.do(http.MethodGet, "/api/products", admin, nil)
	if *b.Count != 3 {
		t.Fatalf("admin list count = %d", *b.Count)
	}

	code, b = a.do(http.MethodGet, "/api/products/search/advanced?q=RECYCL", "", nil)
	if code != http.StatusOK || *b.Count != 1 || *b.Page != 1 || *b.TotalPages != 1 {
		t.Fatalf("advanced search: %d %+v", code, b)
	}

	code, _ = a.do(http.MethodGet, "/api/products/search/advanced?sortBy=password", "", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("bad sort: %d", code)
	}

	code, b = a.do(http.MethodPut, "/api/products/"+boxID, admin, map[string]any{"name": "Kraft Box XL"})
	if code != http.StatusOK || b.Message != "Product updated successfully" {
		t.Fatalf("update: %d %+v", code, b)
	}

	code, _ = a.do(http.MethodDelete, "/api/products/"+boxID, admin, nil)
	if code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	code, b = a.do(http.MethodGet, "/api/products/"+boxID, "", nil)
	if code != http.StatusNotFound || b.Message != "Product not found" {
		t.Fatalf("get deleted: %d %+v", code, b)
	}
}

func TestUserRules(t *testing.T) {
	a := newAPI(t, nil)
	admin, adminID := a.admin()
	customer, customerID := a.register("Cust", "cust@example.com")
	_, otherID := a.register("Other", "other@example.com")

	code, b := a.do(http.MethodPut, "/api/users/"+customerID, customer, map[string]any{"role": "admin"})
	if code != http.StatusForbidden || b.Message != "Only admin can change user role" {
		t.Fatalf("self promote: %d %+v", code, b)
	}
	code, _ = a.do(http.MethodGet, "/api/users/"+otherID, customer, nil)
	if code != http.StatusForbidden {
		t.Fatalf("read other: %d", code)
	}
	code, _ = a.do(http.MethodGet, "/api/users", customer, nil)
	if code != http.StatusForbidden {
		t.Fatalf("customer list: %d", code)
	}
	code, b = a.do(http.MethodDelete, "/api/users/"+adminID, admin, nil)
	if code != http.StatusBadRequest || b.Message != "Cannot delete your own account" {
		t.Fatalf("self delete: %d %+v", code, b)
	}
	code, b = a.do(http.MethodGet, "/api/users?page=1&limit=2", admin, nil)
	if code != http.StatusOK || *b.Count != 2 || *b.Total != 3 || *b.TotalPages != 2 {
		t.Fatalf("paginated users: %d %+v", code, b)
	}

	code, _ = a.do(http.MethodPut, "/api/users/"+customerID, admin, map[string]any{"isActive": false})
	if code != http.StatusOK {
		t.Fatalf("deactivate: %d", code)
	}
	code, b = a.do(http.MethodGet, "/api/auth/me", customer, nil)
	if code != http.StatusUnauthorized || b.Message != "Account is deactivated" {
		t.Fatalf("deactivated token: %d %+v", code, b)
	}
}

func TestBootstrapDisabled(t *testing.T) {
	a := newAPI(t, func(c *config.Config) { c.AllowAdminBootstrap = false })
	code, b := a.do(http.MethodPost, "/api/users/create-admin", "", map[string]string{
		"name": "Admin", "email": "admin@allure.test", "password": "secret1",
	})
	if code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
		t.Fatalf("bootstrap disabled: %d %+v", code, b)
	}
}

func TestMessageLifecycle(t *testing.T) {
	a := newAPI(t, nil)
	admin, _ := a.admin()

	code, b := a.do(http.MethodPost, "/api/messages", "", map[string]string{
		"name": "Buyer", "email": "buyer@example.com", "subject": "Quote", "message": "<b>Need</b> 10k boxes",
	})
	if code != http.StatusCreated {
		t.Fatalf("create: %d %+v", code, b)
	}
	var m struct{ ID, Message, Status string }
	_ = json.Unmarshal(b.Data, &m)
	if m.Status != "new" || strings.Contains(m.Message, "<b>") {
		t.Fatalf("message = %+v", m)
	}

	code, _ = a.do(http.MethodGet, "/api/messages", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("anonymous inbox: %d", code)
	}

	steps := []struct {
		path, status string
		payload      any
	}{
		{"/read", "read", nil},
		{"/reply", "replied", map[string]string{"replyMessage": "Sent a quote"}},
		{"/close", "closed", nil},
	}
	for _, s := range steps {
		code, b := a.do(http.MethodPut, "/api/messages/"+m.ID+s.path, admin, s.payload)
		var got struct{ Status string }
		_ = json.Unmarshal(b.Data, &got)
		if code != http.StatusOK || got.Status != s.status {
			t.Fatalf("%s: %d %+v", s.path, code, b)
		}
	}
	code, b = a.do(http.MethodPut, "/api/messages/"+m.ID+"/reply", admin, map[string]string{"replyMessage": "again"})
	if code != http.StatusBadRequest || b.Message != "Message is closed" {
		t.Fatalf("reply closed: %d %+v", code, b)
	}

	code, b = a.do(http.MethodGet, "/api/messages?status=closed", admin, nil)
	if code != http.StatusOK || *b.Count != 1 {
		t.Fatalf("status filter: %d %+v", code, b)
	}
}

func multipartRequest(t *testing.T, path, field string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

func TestUploads(t *testing.T) {
	a := newAPI(t, nil)
	admin, _ := a.admin()
	customer, _ := a.register("Cust", "cust@example.com")

	code, _ := a.send(multipartRequest(t, "/api/uploads", "file", map[string][]byte{"logo.png": pngHeader}), "")
	if code != http.StatusUnauthorized {
		t.Fatalf("anonymous upload: %d", code)
	}

	code, b := a.send(multipartRequest(t, "/api/uploads", "file", map[string][]byte{"logo.png": pngHeader}), customer)
	if code != http.StatusOK {
		t.Fatalf("upload: %d %+v", code, b)
	}
	var asset struct {
		PublicID     string `json:"public_id"`
		OriginalName string `json:"originalname"`
	}
	_ = json.Unmarshal(b.Data, &asset)
	if asset.OriginalName != "logo.png" || !strings.Contains(asset.PublicID, "/") {
		t.Fatalf("asset = %+v", asset)
	}

	code, _ = a.send(multipartRequest(t, "/api/uploads", "file", map[string][]byte{"notes.txt": []byte("hello")}), customer)
	if code != http.StatusBadRequest {
		t.Fatalf("text upload: %d", code)
	}

	code, b = a.send(multipartRequest(t, "/api/uploads/multiple", "files", map[string][]byte{"a.png": pngHeader, "b.png": pngHeader}), customer)
	if code != http.StatusOK || *b.Count != 2 {
		t.Fatalf("multiple: %d %+v", code, b)
	}

	code, _ = a.do(http.MethodDelete, "/api/uploads/"+asset.PublicID, customer, nil)
	if code != http.StatusForbidden {
		t.Fatalf("customer delete: %d", code)
	}
	code, _ = a.do(http.MethodDelete, "/api/uploads/"+asset.PublicID, admin, nil)
	if code != http.StatusOK || a.images.Has(asset.PublicID) {
		t.Fatalf("admin delete: %d", code)
	}
	code, b = a.do(http.MethodDelete, "/api/uploads/"+asset.PublicID, admin, nil)
	if code != http.StatusNotFound || b.Message != "File not found" {
		t.Fatalf("delete again: %d %+v", code, b)
	}
}

func TestBannerHealthMetricsAndNotFound(t *testing.T) {
	a := newAPI(t, nil)

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database":"Connected"`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "Allure Impex API is running!") {
		t.Fatalf("banner: %s", rec.Body.String())
	}

	code, b := a.do(http.MethodGet, "/api/nope", "", nil)
	if code != http.StatusNotFound || b.Success || b.Message != "Route not found" {
		t.Fatalf("not found: %d %+v", code, b)
	}

	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `allure_http_requests_total{method="GET",route="/api/health",status="200"} 1`) {
		t.Fatalf("metrics missing health request:\n%s", rec.Body.String())
	}
}

func TestUserWritesPurgeProductCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := config.NewRedisClient(config.RedisConfig{Addr: addr})
	if rdb == nil {
		t.Skipf("redis at %s unreachable", addr)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	a := newAPIWith(t, nil, func(d *Deps) {
		d.Redis = rdb
		d.Cache = config.CacheConfig{
			Enabled:      true,
			Groups:       map[string]bool{productsGroup: true},
			TTL:          time.Minute,
			Prefix:       fmt.Sprintf("test-%d", time.Now().UnixNano()),
			MaxBodyBytes: 1 << 20,
		}
	})
	admin, adminID := a.admin()
	a.product(admin, map[string]any{"name": "Kraft Box", "description": "Five ply", "category": "corrugated"})

	list := func() (string, string) {
		t.Helper()
		rec := httptest.NewRecorder()
		a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
		}
		return rec.Header().Get("X-Cache"), rec.Body.String()
	}

	if hit, _ := list(); hit != "MISS" {
		t.Fatalf("first read X-Cache = %q", hit)
	}
	if hit, _ := list(); hit != "HIT" {
		t.Fatalf("second read X-Cache = %q", hit)
	}

	code, b := a.do(http.MethodPut, "/api/users/"+adminID, admin, map[string]any{"name": "Renamed Admin"})
	if code != http.StatusOK {
		t.Fatalf("rename: %d %+v", code, b)
	}
	hit, out := list()
	if hit != "MISS" || !strings.Contains(out, "Renamed Admin") {
		t.Fatalf("after rename X-Cache = %q body %s", hit, out)
	}
}
