// Package routing maintains the gateway routing table: the mapping
// from tool names, roles, and platforms to backend endpoints, rebuilt
// from directory discovery and swapped atomically.
package routing

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/netopscore/netops-gateway/internal/model"
)

// Entry is the materialized join of one capability and the endpoint of
// the backend that declared it. Entries are immutable after Build.
type Entry struct {
	Capability model.Capability
	Backend    string
	Endpoint   string
}

// Table holds the derived routing indexes for one record set. A Table
// is immutable; Router swaps whole tables.
type Table struct {
	byTool     map[string]*Entry
	byRole     map[model.Role][]*Entry
	byPlatform map[model.Platform][]*Entry
	endpoints  map[string]string
	servers    []string
	entries    []*Entry
	builtAt    time.Time
}

// Build constructs a table from a record set. On duplicate tool names
// the last record wins; its entry is the only one indexed anywhere.
func Build(records []model.BackendRecord) *Table {
	t := &Table{
		byTool:     make(map[string]*Entry),
		byRole:     make(map[model.Role][]*Entry),
		byPlatform: make(map[model.Platform][]*Entry),
		endpoints:  make(map[string]string),
		builtAt:    time.Now().UTC(),
	}

	// First pass decides ownership of each tool name
	owner := make(map[string]int)
	for i, rec := range records {
		if rec.Name == "" {
			continue
		}
		if _, seen := t.endpoints[rec.Name]; !seen {
			t.servers = append(t.servers, rec.Name)
		}
		t.endpoints[rec.Name] = rec.Endpoint
		for _, cap := range rec.Capabilities {
			owner[cap.ToolName] = i
		}
	}

	// Second pass indexes only the winning entries, preserving record
	// and capability declaration order
	for i, rec := range records {
		for _, cap := range rec.Capabilities {
			if cap.ToolName == "" || owner[cap.ToolName] != i {
				continue
			}
			platform := cap.Platform
			if platform == "" {
				platform = rec.Platform
			}
			cap.Platform = platform

			e := &Entry{
				Capability: cap,
				Backend:    rec.Name,
				Endpoint:   rec.Endpoint,
			}
			t.byTool[cap.ToolName] = e
			t.entries = append(t.entries, e)
			for _, role := range cap.Roles {
				t.byRole[role] = append(t.byRole[role], e)
			}
			t.byPlatform[platform] = append(t.byPlatform[platform], e)
		}
	}

	return t
}

// GetTool returns the entry for a tool name
func (t *Table) GetTool(name string) (*Entry, bool) {
	e, ok := t.byTool[name]
	return e, ok
}

// ToolsForRole returns the entries serving a role, in declaration order
func (t *Table) ToolsForRole(role model.Role) []*Entry {
	return t.byRole[role]
}

// ToolsForPlatform returns the entries for a platform, in declaration order
func (t *Table) ToolsForPlatform(platform model.Platform) []*Entry {
	return t.byPlatform[platform]
}

// Entries returns every routable entry in record declaration order
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// AllEndpoints returns a copy of the backend-name to endpoint map
func (t *Table) AllEndpoints() map[string]string {
	out := make(map[string]string, len(t.endpoints))
	for k, v := range t.endpoints {
		out[k] = v
	}
	return out
}

// Endpoint returns the endpoint registered for a backend name
func (t *Table) Endpoint(backend string) (string, bool) {
	e, ok := t.endpoints[backend]
	return e, ok
}

// Servers returns backend names in first-seen order
func (t *Table) Servers() []string {
	out := make([]string, len(t.servers))
	copy(out, t.servers)
	return out
}

// ServerCount returns the number of known backends
func (t *Table) ServerCount() int {
	return len(t.servers)
}

// ToolCount returns the number of routable tools
func (t *Table) ToolCount() int {
	return len(t.byTool)
}

// BuiltAt returns when this table was constructed
func (t *Table) BuiltAt() time.Time {
	return t.builtAt
}

// Router publishes the live table. Readers always observe a complete
// table, old or new, never a partial one.
type Router struct {
	table  atomic.Pointer[Table]
	logger *zap.Logger
}

// NewRouter creates a router holding an empty table
func NewRouter(logger *zap.Logger) *Router {
	r := &Router{logger: logger.Named("routing")}
	r.table.Store(Build(nil))
	return r
}

// Table returns the current snapshot; never nil
func (r *Router) Table() *Table {
	return r.table.Load()
}

// Swap atomically replaces the live table
func (r *Router) Swap(t *Table) {
	old := r.table.Swap(t)
	r.logger.Info("Routing table updated",
		zap.Int("servers", t.ServerCount()),
		zap.Int("tools", t.ToolCount()),
		zap.Int("previous_tools", old.ToolCount()),
	)
}

// GetTool looks up a tool in the current table
func (r *Router) GetTool(name string) (*Entry, bool) {
	return r.Table().GetTool(name)
}

// ToolsForRole queries the current table
func (r *Router) ToolsForRole(role model.Role) []*Entry {
	return r.Table().ToolsForRole(role)
}

// ToolsForPlatform queries the current table
func (r *Router) ToolsForPlatform(platform model.Platform) []*Entry {
	return r.Table().ToolsForPlatform(platform)
}

// AllEndpoints queries the current table
func (r *Router) AllEndpoints() map[string]string {
	return r.Table().AllEndpoints()
}
