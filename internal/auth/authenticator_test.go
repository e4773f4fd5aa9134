package auth

import (
	"net/http"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewAuthenticator(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	tests := []struct {
		name     string
		mode     string
		token    string
		username string
		password string
		wantErr  bool
	}{
		{
			name:    "none mode",
			mode:    "none",
			wantErr: false,
		},
		{
			name:    "empty mode defaults to none",
			mode:    "",
			wantErr: false,
		},
		{
			name:    "bearer with token",
			mode:    "bearer",
			token:   "test-token-12345", //nolint:gosec // test value, not a real secret
			wantErr: false,
		},
		{
			name:    "bearer without token",
			mode:    "bearer",
			wantErr: true,
		},
		{
			name:     "basic with credentials",
			mode:     "basic",
			username: "gateway",
			password: "test-password", //nolint:gosec // test value, not a real secret
			wantErr:  false,
		},
		{
			name:     "basic without password",
			mode:     "basic",
			username: "gateway",
			wantErr:  true,
		},
		{
			name:    "unknown mode",
			mode:    "kerberos",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := New(tt.mode, tt.token, tt.username, tt.password, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && auth == nil {
				t.Error("Expected authenticator to be created")
			}
		})
	}
}

func TestAuthenticateBearer(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	auth, err := New("bearer", "test-token-12345", "", "", logger)
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	req, _ := http.NewRequest("GET", "http://localhost:8888/v1/records", nil)
	if err := auth.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}

	authHeader := req.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		t.Errorf("Expected Bearer authorization header, got %q", authHeader)
	}
}

func TestAuthenticateBasic(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	auth, err := New("basic", "", "gateway", "test-password", logger)
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	req, _ := http.NewRequest("GET", "http://localhost:8888/v1/records", nil)
	if err := auth.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}

	user, pass, ok := req.BasicAuth()
	if !ok {
		t.Fatal("Expected basic auth header to be set")
	}
	if user != "gateway" || pass != "test-password" {
		t.Errorf("Unexpected credentials: %s/%s", user, pass)
	}
}

func TestAuthenticateNone(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	auth, err := New("none", "", "", "", logger)
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	req, _ := http.NewRequest("GET", "http://localhost:8888/health", nil)
	if err := auth.Authenticate(req); err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}

	if req.Header.Get("Authorization") != "" {
		t.Error("None mode should not set an authorization header")
	}
}

func TestAuthenticateNilRequest(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	auth, err := New("none", "", "", "", logger)
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	if err := auth.Authenticate(nil); err == nil {
		t.Error("Expected error for nil request")
	}
}

func TestMode(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	auth, _ := New("", "", "", "", logger)
	if auth.Mode() != ModeNone {
		t.Errorf("Mode() = %q, want none", auth.Mode())
	}

	auth, _ = New("bearer", "tok-12345678", "", "", logger)
	if auth.Mode() != ModeBearer {
		t.Errorf("Mode() = %q, want bearer", auth.Mode())
	}
}
