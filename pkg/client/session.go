package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// Session tracks the signed-in user of one client. It is safe for
// concurrent use.
type Session struct {
	api   *Client
	store TokenStore

	mu      sync.RWMutex
	user    *User
	loading bool
}

// NewSession uses store for the token; nil keeps it in memory.
func NewSession(api *Client, store TokenStore) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Session{api: api, store: store}
}

// Bootstrap restores the user of a stored token. Any failure clears the
// token and leaves the session signed out; it is never reported.
func (s *Session) Bootstrap(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	tok, err := s.store.Load()
	if err != nil || tok == "" {
		s.signOut()
		return
	}
	u, err := s.api.Me(ctx, tok)
	if err != nil {
		s.signOut()
		return
	}
	s.setUser(&u)
}

// Login signs in and stores the token.
func (s *Session) Login(ctx context.Context, email, password string) (User, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	tok, u, err := s.api.Login(ctx, email, password)
	if err != nil {
		return User{}, err
	}
	return u, s.signIn(tok, u)
}

// Register creates an account and signs it in.
func (s *Session) Register(ctx context.Context, p Profile) (User, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	tok, u, err := s.api.Register(ctx, p)
	if err != nil {
		return User{}, err
	}
	return u, s.signIn(tok, u)
}

// Do calls the API with the stored token as bearer credential and decodes
// the envelope into out. A 401 reply signs the session out.
func (s *Session) Do(ctx context.Context, method, path string, in, out any) error {
	err := s.api.do(ctx, method, path, s.Token(), in, out)
	var ae *APIError
	if errors.As(err, &ae) && ae.Status == http.StatusUnauthorized {
		s.signOut()
	}
	return err
}

// Logout forgets the user and the stored token.
func (s *Session) Logout() error {
	s.setUser(nil)
	return s.store.Clear()
}

// Token is the stored credential, empty when signed out.
func (s *Session) Token() string {
	tok, _ := s.store.Load()
	return tok
}

// User is the signed-in user.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Loading reports whether a sign-in or bootstrap is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.User()
	return ok
}

func (s *Session) IsAdmin() bool {
	u, ok := s.User()
	return ok && u.Role == "admin"
}

func (s *Session) signIn(tok string, u User) error {
	if err := s.store.Save(tok); err != nil {
		return err
	}
	s.setUser(&u)
	return nil
}

func (s *Session) signOut() {
	_ = s.store.Clear()
	s.setUser(nil)
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}
