package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/config"
	"github.com/netopscore/netops-gateway/internal/model"
)

func newTestClient(t *testing.T, directoryURL string) *Client {
	t.Helper()

	cfg := &config.Config{
		DirectoryURL:    directoryURL,
		Timeout:         5 * time.Second,
		MaxRetries:      1,
		RetryWaitMin:    10 * time.Millisecond,
		RetryWaitMax:    50 * time.Millisecond,
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}

	c, err := New(cfg, zap.NewNop(), "test", nil)
	require.NoError(t, err)
	return c
}

func testRecord() *model.BackendRecord {
	return &model.BackendRecord{
		Name:     "meraki_mcp",
		Platform: model.PlatformMeraki,
		Roles:    []model.Role{model.RoleObservability},
		Skills:   []string{"telemetry"},
		Endpoint: "http://meraki-mcp:8001",
		Capabilities: []model.Capability{
			{ToolName: "meraki_health", Roles: []model.Role{model.RoleObservability}, ReadOnly: true},
		},
	}
}

func TestRegister(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"cid": "baf1cid123"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	defer func() { _ = c.Close() }()

	cid := c.Register(context.Background(), testRecord())

	assert.Equal(t, "baf1cid123", cid)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/v1/records", gotPath)
	assert.Equal(t, "meraki_mcp", gotBody["name"])

	attrs, ok := gotBody["attributes"].(map[string]interface{})
	require.True(t, ok, "record body should carry nested attributes")
	assert.Equal(t, "meraki", attrs["platform"])
	assert.Equal(t, "http://meraki-mcp:8001", attrs["endpoint"])
}

func TestRegisterIDFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "rec-9"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Equal(t, "rec-9", c.Register(context.Background(), testRecord()))
}

func TestRegisterNoIDInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Equal(t, "unknown", c.Register(context.Background(), testRecord()))
}

func TestRegisterDirectoryUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	c := newTestClient(t, server.URL)
	assert.Equal(t, CIDStandalone, c.Register(context.Background(), testRecord()))
}

func TestRegisterRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "duplicate record"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Equal(t, CIDError, c.Register(context.Background(), testRecord()))
}

func TestRegisterServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	// 500s are retried by the HTTP core; once exhausted the registration
	// reports an error, not standalone.
	assert.Equal(t, CIDError, c.Register(context.Background(), testRecord()))
}

func TestDiscoverWrappedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"records": [
				{
					"name": "meraki_mcp",
					"attributes": {
						"platform": "meraki",
						"roles": ["observability"],
						"endpoint": "http://meraki-mcp:8001"
					},
					"modules": {
						"mcp_server": {
							"tools": [
								{"name": "meraki_health", "roles": ["observability"]}
							]
						}
					}
				}
			]
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	records := c.Discover(context.Background(), nil, nil, "")

	require.Len(t, records, 1)
	assert.Equal(t, "meraki_mcp", records[0].Name)
	assert.Equal(t, model.PlatformMeraki, records[0].Platform)
	require.Len(t, records[0].Capabilities, 1)
	assert.Equal(t, "meraki_health", records[0].Capabilities[0].ToolName)
	assert.True(t, records[0].Capabilities[0].ReadOnly, "read_only should default to true")
}

func TestDiscoverBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name": "ise_mcp", "attributes": {"platform": "ise", "endpoint": "http://ise-mcp:8005"}}
		]`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	records := c.Discover(context.Background(), nil, nil, "")

	require.Len(t, records, 1)
	assert.Equal(t, "ise_mcp", records[0].Name)
	assert.Equal(t, model.PlatformISE, records[0].Platform)
}

func TestDiscoverQueryParams(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.Discover(context.Background(),
		[]string{"telemetry", "alerts"},
		[]model.Role{model.RoleObservability, model.RoleSecurity},
		model.PlatformMeraki,
	)

	require.NotNil(t, gotQuery)
	assert.Equal(t, []string{"telemetry,alerts"}, gotQuery["skills"])
	assert.Equal(t, []string{"observability,security"}, gotQuery["roles"])
	assert.Equal(t, []string{"meraki"}, gotQuery["platform"])
}

func TestDiscoverOmitsEmptyFilters(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.Discover(context.Background(), nil, nil, "")

	assert.Empty(t, gotQuery)
}

func TestDiscoverServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Empty(t, c.Discover(context.Background(), nil, nil, ""))
}

func TestDiscoverDirectoryUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestClient(t, server.URL)
	assert.Empty(t, c.Discover(context.Background(), nil, nil, ""))
}

func TestDiscoverMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.Empty(t, c.Discover(context.Background(), nil, nil, ""))
}

func TestDeregister(t *testing.T) {
	var gotPath, gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	assert.True(t, c.Deregister(context.Background(), "baf1cid123"))
	assert.Equal(t, "DELETE", gotMethod)
	assert.Equal(t, "/v1/records/baf1cid123", gotPath)
}

func TestDeregisterSentinels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("sentinel CIDs must not reach the directory")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	assert.True(t, c.Deregister(context.Background(), CIDStandalone))
	assert.True(t, c.Deregister(context.Background(), CIDError))
	assert.True(t, c.Deregister(context.Background(), ""))
}

func TestDeregisterNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.False(t, c.Deregister(context.Background(), "gone"))
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	assert.True(t, c.Health(context.Background()))
}

func TestHealthDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := newTestClient(t, server.URL)
	assert.False(t, c.Health(context.Background()))
}

func TestTrailingSlashStripped(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"records": []}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/")
	c.Discover(context.Background(), nil, nil, "")

	assert.Equal(t, "/v1/records", gotPath)
}
