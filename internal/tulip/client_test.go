package tulip

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestCredentials_Token(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		want    string
		wantErr error
	}{
		{"explicit token wins", Credentials{Auth: "tok", APIKey: "k", APISecret: "s", EnvAuth: "env"}, "tok", nil},
		{"key and secret", Credentials{APIKey: "k", APISecret: "s", EnvAuth: "env"}, "azpz", nil},
		{"key without secret falls through", Credentials{APIKey: "k", EnvAuth: "env"}, "env", nil},
		{"environment", Credentials{EnvAuth: "env"}, "env", nil},
		{"nothing", Credentials{}, "", ErrNoCredentials},
		{"secret alone", Credentials{APISecret: "s"}, "", ErrNoCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.creds.Token()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("token = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		instance string
		full     bool
		want     string
	}{
		{"acme.tulip.co", false, "https://acme.tulip.co/api/v3/"},
		{"https://acme.tulip.co", false, "https://acme.tulip.co/api/v3/"},
		{"http://acme.tulip.co/", false, "https://acme.tulip.co/api/v3/"},
		{"http://localhost:8089", true, "http://localhost:8089/api/v3/"},
		{"http://localhost:8089/", true, "http://localhost:8089/api/v3/"},
	}

	for _, tt := range tests {
		if got := BaseURL(tt.instance, tt.full); got != tt.want {
			t.Errorf("BaseURL(%q, %v) = %q, want %q", tt.instance, tt.full, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusOK, nil},
		{http.StatusCreated, nil},
		{http.StatusNoContent, nil},
		{http.StatusBadRequest, ErrMalformedRequest},
		{http.StatusUnprocessableEntity, ErrMalformedRequest},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusInternalServerError, ErrInternal},
		{http.StatusAccepted, ErrUnknownResponse},
		{http.StatusTeapot, ErrUnknownResponse},
		{http.StatusServiceUnavailable, ErrUnknownResponse},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{
		Kind:        ErrInternal,
		Method:      http.MethodPost,
		URL:         "https://x/api/v3/tables/t/records",
		StatusCode:  500,
		RequestBody: []byte(`{"id":"a"}`),
	}
	msg := err.Error()
	for _, want := range []string{"POST", "tables/t/records", "internal error", `{"id":"a"}`} {
		if !strings.Contains(msg, want) {
			t.Errorf("%q missing from %q", want, msg)
		}
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(Config{Instance: "acme.tulip.co"}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
	if _, err := NewClient(Config{Credentials: Credentials{Auth: "x"}}); err == nil {
		t.Error("expected an error without an instance")
	}

	c, err := NewClient(Config{
		Instance:    "acme.tulip.co",
		Credentials: Credentials{APIKey: "k", APISecret: "s"},
		Concurrency: 5,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	if c.BaseURL() != "https://acme.tulip.co/api/v3/" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
	if c.authHeader != "Basic azpz" {
		t.Errorf("authHeader = %q", c.authHeader)
	}
	if c.Slots().MaxConcurrent != 5 {
		t.Errorf("slots = %+v, want 5", c.Slots())
	}
	if c.transport.MaxConnsPerHost != 5 {
		t.Errorf("MaxConnsPerHost = %d, want 5", c.transport.MaxConnsPerHost)
	}
	if c.limiter != nil {
		t.Error("rate limiter set without RateLimit")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{Instance: "acme.tulip.co", Credentials: Credentials{EnvAuth: "e"}, RateLimit: 0.5})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Slots().MaxConcurrent != DefaultConcurrency {
		t.Errorf("slots = %d, want %d", c.Slots().MaxConcurrent, DefaultConcurrency)
	}
	if c.http.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, DefaultTimeout)
	}
	if c.limiter == nil || c.limiter.Burst() != 1 {
		t.Error("fractional rate limit should get a burst of 1")
	}
}

func TestClient_Handles(t *testing.T) {
	c, err := NewClient(Config{Instance: "acme.tulip.co", Credentials: Credentials{Auth: "x"}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Table("t1").ID() != "t1" || c.TableLink("l1").ID() != "l1" || c.Machine("m1").ID() != "m1" {
		t.Error("handles do not carry their ids")
	}
}
