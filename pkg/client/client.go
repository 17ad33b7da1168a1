// Package client is a Go client for the Allure Impex API with a session
// that keeps the signed-in user and its token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// User is the public account record.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Company   string     `json:"company,omitempty"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Profile is the registration form.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
}

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client calls the API under BaseURL (for example http://localhost:5000/api).
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a client with a 15s request timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

var errNoSession = errors.New("client: response carries no token or user")

func (r authResponse) session() (string, User, error) {
	if r.Token == "" || r.User.ID == "" {
		return "", User{}, errNoSession
	}
	return r.Token, r.User, nil
}

// status is the part of the envelope every response carries.
type status struct {
	Success *bool        `json:"success"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// do sends in as JSON and decodes the envelope into out. A response fails
// when its status is 4xx/5xx or its envelope says success false.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return err
	}
	var st status
	_ = json.Unmarshal(raw, &st)
	if res.StatusCode >= 400 || (st.Success != nil && !*st.Success) {
		return &APIError{Status: res.StatusCode, Message: st.Message, Fields: st.Errors}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (string, User, error) {
	var r authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password}, &r); err != nil {
		return "", User{}, err
	}
	return r.session()
}

// Register creates a customer account and returns its token.
func (c *Client) Register(ctx context.Context, p Profile) (string, User, error) {
	var r authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", p, &r); err != nil {
		return "", User{}, err
	}
	return r.session()
}

// Me returns the profile the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var r struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &r); err != nil {
		return User{}, err
	}
	if r.Data.ID == "" {
		return User{}, errNoSession
	}
	return r.Data, nil
}

// Message turns any client error into a short sentence fit for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *APIError
	if errors.As(err, &ae) {
		switch {
		case len(ae.Fields) > 0:
			return ae.Fields[0].Message
		case ae.Message != "":
			return ae.Message
		case ae.Status >= 500:
			return "The server had a problem, please try again later"
		case ae.Status >= 400:
			return http.StatusText(ae.Status)
		default:
			return "Something went wrong"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "The request was cancelled"
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return "The request timed out"
		}
		return "Cannot reach the server"
	}
	return "Something went wrong"
}
