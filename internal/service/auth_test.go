package service

import (
	"context"
	"testing"

	"github.com/allureimpex/allure-impex-api/internal/model"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.svc.Auth.Register(ctx, RegisterInput{Name: "alice", Email: " Alice@X.com ", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Token == "" || s.User.Role != model.RoleCustomer || s.User.PasswordHash != "" {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.User.Email != "alice@x.com" {
		t.Fatalf("email not normalized: %q", s.User.Email)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != queue.TypeUserRegistered {
		t.Fatalf("events = %v", got)
	}

	logged, err := f.svc.Auth.Login(ctx, LoginInput{Email: "ALICE@x.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if logged.User.LastLogin == nil {
		t.Fatal("lastLogin not set on login")
	}
	stored, _ := f.stores.Users.GetByID(ctx, logged.User.ID)
	if stored.LastLogin == nil {
		t.Fatal("lastLogin not persisted")
	}

	me, err := f.svc.Auth.Authenticate(ctx, logged.Token)
	if err != nil || me.ID != s.User.ID || me.PasswordHash != "" {
		t.Fatalf("authenticate: %+v %v", me, err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer(t, "alice@x.com")

	_, err := f.svc.Auth.Register(ctx, RegisterInput{Name: "Other", Email: "ALICE@x.com", Password: "secret2"})
	wantKind(t, err, KindConflict)
	if KindOf(err).Status() != 400 {
		t.Fatal("duplicate email must answer 400")
	}
	_, total, _ := f.stores.Users.List(ctx, repository.UserFilter{})
	if total != 1 {
		t.Fatalf("expected one user, got %d", total)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.customer(t, "alice@x.com")

	_, wrongPass := f.svc.Auth.Login(ctx, LoginInput{Email: "alice@x.com", Password: "bad-pass"})
	_, unknown := f.svc.Auth.Login(ctx, LoginInput{Email: "bob@x.com", Password: "secret1"})
	wantKind(t, wrongPass, KindUnauthorized)
	wantKind(t, unknown, KindUnauthorized)
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPass, unknown)
	}
}

func TestAuthenticateLiveLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	cust := f.customer(t, "alice@x.com")
	tok, _, _ := f.tokens.Issue(cust.UserID)

	off := false
	if _, err := f.svc.Users.Update(ctx, admin, cust.UserID, UpdateUserInput{IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Auth.Authenticate(ctx, tok)
	wantKind(t, err, KindUnauthorized)

	if err := f.svc.Users.Delete(ctx, admin, cust.UserID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Auth.Authenticate(ctx, tok)
	wantKind(t, err, KindUnauthorized)

	_, err = f.svc.Auth.Authenticate(ctx, "")
	wantKind(t, err, KindUnauthorized)
	_, err = f.svc.Auth.Authenticate(ctx, "garbage")
	wantKind(t, err, KindUnauthorized)
}

func TestLoginRejectsDeactivated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t, "root@x.com")
	cust := f.customer(t, "alice@x.com")
	off := false
	if _, err := f.svc.Users.Update(ctx, admin, cust.UserID, UpdateUserInput{IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Auth.Login(ctx, LoginInput{Email: "alice@x.com", Password: "secret1"})
	wantKind(t, err, KindUnauthorized)
}
