package auth

import (
	"fmt"
	"net/http"

	"github.com/IBM/go-sdk-core/v5/core"
	"go.uber.org/zap"
)

// Auth modes for outbound directory requests
const (
	ModeNone   = "none"
	ModeBearer = "bearer"
	ModeBasic  = "basic"
)

// Authenticator handles authentication for outbound directory requests
type Authenticator struct {
	authenticator core.Authenticator
	mode          string
	logger        *zap.Logger
}

// New creates a new authenticator for the given mode
func New(mode, token, username, password string, logger *zap.Logger) (*Authenticator, error) {
	var authenticator core.Authenticator

	switch mode {
	case "", ModeNone:
		mode = ModeNone
		authenticator = &core.NoAuthAuthenticator{}

	case ModeBearer:
		if token == "" {
			return nil, fmt.Errorf("bearer auth requires a token")
		}
		authenticator = &core.BearerTokenAuthenticator{
			BearerToken: token,
		}

	case ModeBasic:
		if username == "" || password == "" {
			return nil, fmt.Errorf("basic auth requires username and password")
		}
		authenticator = &core.BasicAuthenticator{
			Username: username,
			Password: password,
		}

	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", mode)
	}

	// Validate the authenticator
	if err := authenticator.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate authenticator: %w", err)
	}

	logger.Info("Directory authenticator initialized", zap.String("mode", mode))

	return &Authenticator{
		authenticator: authenticator,
		mode:          mode,
		logger:        logger,
	}, nil
}

// Authenticate adds authentication to an HTTP request
func (a *Authenticator) Authenticate(req *http.Request) error {
	if req == nil {
		return fmt.Errorf("request cannot be nil")
	}

	err := a.authenticator.Authenticate(req)
	if err != nil {
		a.logger.Error("Authentication failed", zap.Error(err))
		return fmt.Errorf("authentication failed: %w", err)
	}

	return nil
}

// Mode returns the configured auth mode
func (a *Authenticator) Mode() string {
	return a.mode
}
