package model

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Capability describes a single tool exposed by a backend. Immutable.
type Capability struct {
	ToolName         string   `json:"tool_name"`
	Description      string   `json:"description"`
	Roles            []Role   `json:"roles"`
	ReadOnly         bool     `json:"read_only"`
	Destructive      bool     `json:"destructive"`
	RequiresApproval bool     `json:"requires_approval"`
	Platform         Platform `json:"platform"`
}

// BackendRecord describes one backend server for directory exchange.
// The JSON form is the canonical directory wire shape; see MarshalJSON.
type BackendRecord struct {
	Name         string
	Version      string
	Description  string
	Platform     Platform
	Skills       []string
	Domains      []string
	Capabilities []Capability
	Roles        []Role
	Transport    string
	Endpoint     string
	Metadata     map[string]interface{}
}

// Validate checks the record invariants: a well-formed endpoint and
// capability platforms matching the record platform. Cross-cutting
// synthesizer records (role infer) may mix platforms.
func (r BackendRecord) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("record has no name")
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("record %s: malformed endpoint %q", r.Name, r.Endpoint)
	}
	if r.Platform == PlatformInfer {
		return nil
	}
	for _, cap := range r.Capabilities {
		if cap.Platform != "" && cap.Platform != r.Platform {
			return fmt.Errorf("record %s: capability %s declares platform %s",
				r.Name, cap.ToolName, cap.Platform)
		}
	}
	return nil
}

// wireRecord is the directory wire shape: attributes and tool modules are
// nested, and per-tool read_only defaults to true when absent.
type wireRecord struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Attributes  wireAttributes         `json:"attributes"`
	Skills      []string               `json:"skills"`
	Domains     []string               `json:"domains"`
	Modules     wireModules            `json:"modules"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type wireAttributes struct {
	Platform  string   `json:"platform"`
	Roles     []string `json:"roles"`
	Transport string   `json:"transport"`
	Endpoint  string   `json:"endpoint"`
}

type wireModules struct {
	MCPServer wireMCPServer `json:"mcp_server"`
}

type wireMCPServer struct {
	Tools []wireTool `json:"tools"`
}

type wireTool struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Roles            []string `json:"roles"`
	ReadOnly         *bool    `json:"read_only,omitempty"`
	Destructive      bool     `json:"destructive,omitempty"`
	RequiresApproval bool     `json:"requires_approval,omitempty"`
}

// MarshalJSON emits the canonical directory wire shape.
func (r BackendRecord) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Name:        r.Name,
		Version:     r.Version,
		Description: r.Description,
		Attributes: wireAttributes{
			Platform:  string(r.Platform),
			Roles:     rolesToStrings(r.Roles),
			Transport: r.Transport,
			Endpoint:  r.Endpoint,
		},
		Skills:   r.Skills,
		Domains:  r.Domains,
		Metadata: r.Metadata,
	}
	if w.Version == "" {
		w.Version = "1.0.0"
	}
	if w.Attributes.Transport == "" {
		w.Attributes.Transport = "streamable_http"
	}
	if w.Skills == nil {
		w.Skills = []string{}
	}
	if w.Domains == nil {
		w.Domains = []string{}
	}
	if w.Metadata == nil {
		w.Metadata = map[string]interface{}{}
	}

	tools := make([]wireTool, 0, len(r.Capabilities))
	for _, cap := range r.Capabilities {
		readOnly := cap.ReadOnly
		tools = append(tools, wireTool{
			Name:             cap.ToolName,
			Description:      cap.Description,
			Roles:            rolesToStrings(cap.Roles),
			ReadOnly:         &readOnly,
			Destructive:      cap.Destructive,
			RequiresApproval: cap.RequiresApproval,
		})
	}
	w.Modules.MCPServer.Tools = tools

	return json.Marshal(w)
}

// UnmarshalJSON parses the wire shape, applying defaults: version 1.0.0,
// transport streamable_http, read_only true when omitted, capability
// platform inherited from the record (infer when the record has none).
func (r *BackendRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	platform := Platform(w.Attributes.Platform)
	capPlatform := platform
	if capPlatform == "" {
		capPlatform = PlatformInfer
	}

	caps := make([]Capability, 0, len(w.Modules.MCPServer.Tools))
	for _, t := range w.Modules.MCPServer.Tools {
		readOnly := true
		if t.ReadOnly != nil {
			readOnly = *t.ReadOnly
		}
		caps = append(caps, Capability{
			ToolName:         t.Name,
			Description:      t.Description,
			Roles:            stringsToRoles(t.Roles),
			ReadOnly:         readOnly,
			Destructive:      t.Destructive,
			RequiresApproval: t.RequiresApproval,
			Platform:         capPlatform,
		})
	}

	transport := w.Attributes.Transport
	if transport == "" {
		transport = "streamable_http"
	}
	version := w.Version
	if version == "" {
		version = "1.0.0"
	}

	*r = BackendRecord{
		Name:         w.Name,
		Version:      version,
		Description:  w.Description,
		Platform:     platform,
		Skills:       w.Skills,
		Domains:      w.Domains,
		Capabilities: caps,
		Roles:        stringsToRoles(w.Attributes.Roles),
		Transport:    transport,
		Endpoint:     w.Attributes.Endpoint,
		Metadata:     w.Metadata,
	}
	return nil
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

func stringsToRoles(values []string) []Role {
	out := make([]Role, 0, len(values))
	for _, v := range values {
		if r := Role(v); r.Valid() {
			out = append(out, r)
		}
	}
	return out
}
