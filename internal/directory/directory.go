// Package directory provides the client for the backend directory
// service, where platform MCP servers publish capability records.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/client"
	"github.com/netopscore/netops-gateway/internal/config"
	"github.com/netopscore/netops-gateway/internal/model"
	"github.com/netopscore/netops-gateway/internal/tracing"
)

// Sentinel registration IDs. The gateway keeps running without a
// directory; these mark registrations that never reached it.
const (
	CIDStandalone = "standalone"
	CIDError      = "error"
)

// Client talks to the directory service REST API
type Client struct {
	http    *client.Client
	baseURL string
	logger  *zap.Logger
}

// New creates a directory client. The authenticator may be nil when the
// directory requires no auth.
func New(cfg *config.Config, logger *zap.Logger, version string, authenticator client.Authenticator) (*Client, error) {
	httpClient, err := client.New(cfg, logger, version, cfg.Timeout, authenticator)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.DirectoryURL, "/"),
		logger:  logger.Named("directory"),
	}, nil
}

// Register publishes a backend record. It returns the directory-assigned
// CID, or a sentinel when the directory is unreachable (standalone) or
// rejects the record (error).
func (c *Client) Register(ctx context.Context, record *model.BackendRecord) string {
	ctx, span := tracing.DirectorySpan(ctx, "register")
	defer span.End()

	resp, err := c.http.Do(ctx, &client.Request{
		Method:  "POST",
		BaseURL: c.baseURL,
		Path:    "/v1/records",
		Body:    record,
	})
	if err != nil {
		tracing.RecordError(span, err)
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			c.logger.Warn("Directory unavailable, running standalone", zap.Error(err))
			return CIDStandalone
		}
		c.logger.Error("Registration failed", zap.Error(err))
		return CIDError
	}

	if resp.StatusCode >= 400 {
		c.logger.Error("Registration rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(resp.Body)),
		)
		return CIDError
	}

	var out struct {
		CID string `json:"cid"`
		ID  string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		c.logger.Error("Unexpected registration response", zap.Error(err))
		return CIDError
	}

	cid := out.CID
	if cid == "" {
		cid = out.ID
	}
	if cid == "" {
		cid = "unknown"
	}

	c.logger.Info("Registered with directory",
		zap.String("name", record.Name),
		zap.String("cid", cid),
	)
	return cid
}

// Discover queries the directory for backend records matching the given
// filters. Failures are logged and reported as an empty result.
func (c *Client) Discover(ctx context.Context, skills []string, roles []model.Role, platform model.Platform) []model.BackendRecord {
	query := map[string]string{}
	if len(skills) > 0 {
		query["skills"] = strings.Join(skills, ",")
	}
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		query["roles"] = strings.Join(names, ",")
	}
	if platform != "" {
		query["platform"] = string(platform)
	}

	resp, err := c.http.Do(ctx, &client.Request{
		Method:  "GET",
		BaseURL: c.baseURL,
		Path:    "/v1/records",
		Query:   query,
	})
	if err != nil {
		c.logger.Error("Discovery failed", zap.Error(err))
		return nil
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("Discovery rejected", zap.Int("status", resp.StatusCode))
		return nil
	}

	// The directory returns either {"records": [...]} or a bare array
	var wrapper struct {
		Records []model.BackendRecord `json:"records"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err == nil && wrapper.Records != nil {
		return wrapper.Records
	}

	var records []model.BackendRecord
	if err := json.Unmarshal(resp.Body, &records); err == nil {
		return records
	}

	c.logger.Error("Unexpected discovery response", zap.String("body", string(resp.Body)))
	return nil
}

// Deregister removes a record by CID. Sentinel CIDs from failed
// registrations succeed without touching the directory.
func (c *Client) Deregister(ctx context.Context, cid string) bool {
	if cid == "" || cid == CIDStandalone || cid == CIDError {
		return true
	}

	ctx, span := tracing.DirectorySpan(ctx, "deregister")
	defer span.End()

	resp, err := c.http.Do(ctx, &client.Request{
		Method:  "DELETE",
		BaseURL: c.baseURL,
		Path:    fmt.Sprintf("/v1/records/%s", url.PathEscape(cid)),
	})
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.Warn("Deregistration failed", zap.String("cid", cid), zap.Error(err))
		return false
	}

	return resp.StatusCode < 400
}

// Health reports whether the directory service responds on /health
func (c *Client) Health(ctx context.Context) bool {
	resp, err := c.http.Do(ctx, &client.Request{
		Method:  "GET",
		BaseURL: c.baseURL,
		Path:    "/health",
	})
	if err != nil {
		return false
	}
	return resp.StatusCode == 200
}

// Close releases client resources
func (c *Client) Close() error {
	return c.http.Close()
}
