// Package manifest defines the declarative manifest document — requests,
// dependency edges, transformers, and dataset groupings — and loads it from
// JSON or YAML.
package manifest

// CredentialField describes one entry of configSchema.
type CredentialField struct {
	Description string `json:"description" yaml:"description"`
	Sensitive   bool   `json:"sensitive" yaml:"sensitive"`
}

// Condition is one entry of a retrywhere/failwhere/reauthwhere list.
type Condition struct {
	Status  *int   `json:"status,omitempty" yaml:"status,omitempty"`
	Expr    string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// RetryPolicy groups a retrywhere block's conditions with its backoff knobs.
type RetryPolicy struct {
	Conditions   []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Retries      *int        `json:"retries,omitempty" yaml:"retries,omitempty"`
	InitialDelay *int        `json:"initialDelay,omitempty" yaml:"initialDelay,omitempty"`
	MaxWait      *int        `json:"maxWait,omitempty" yaml:"maxWait,omitempty"`
}

// RateLimit is parsed for introspection only — the engine never enforces it.
type RateLimit struct {
	Requests int    `json:"requests,omitempty" yaml:"requests,omitempty"`
	Per      string `json:"per,omitempty" yaml:"per,omitempty"`
}

// Transformer is a named, reusable bundle of header injections and response
// classification rules.
type Transformer struct {
	Name        string            `json:"name" yaml:"name"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Ratelimits  []RateLimit       `json:"ratelimits,omitempty" yaml:"ratelimits,omitempty"`
	RetryWhere  *RetryPolicy      `json:"retrywhere,omitempty" yaml:"retrywhere,omitempty"`
	FailWhere   []Condition       `json:"failwhere,omitempty" yaml:"failwhere,omitempty"`
	ReauthWhere []Condition       `json:"reauthwhere,omitempty" yaml:"reauthwhere,omitempty"`
}

// Selection extracts one or more values from a response body.
type Selection struct {
	Name   string      `json:"name" yaml:"name"`
	Path   string      `json:"path,omitempty" yaml:"path,omitempty"`
	Type   string      `json:"type,omitempty" yaml:"type,omitempty"`
	Expr   string      `json:"expr,omitempty" yaml:"expr,omitempty"`
	Authy  bool        `json:"authy,omitempty" yaml:"authy,omitempty"`
	Select []Selection `json:"select,omitempty" yaml:"select,omitempty"`
	UpTo   int         `json:"up-to,omitempty" yaml:"up-to,omitempty"`
}

// Selection type constants.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeStatus   = "status"
	TypeFullBody = "full-body"
)

// FunctionMarker values for Request.Function.
const (
	FunctionInteractiveOAuth2Authorization = "interactiveOAuth2Authorization"
)

// Load type values.
const (
	LoadTypeInitial = "initial"
	LoadTypeDelta   = "delta"
)

// Request is one entry of reqs.
type Request struct {
	Name         string                 `json:"name" yaml:"name"`
	URL          string                 `json:"url,omitempty" yaml:"url,omitempty"`
	Method       string                 `json:"method,omitempty" yaml:"method,omitempty"`
	Body         interface{}            `json:"body,omitempty" yaml:"body,omitempty"`
	Headers      map[string]string      `json:"headers,omitempty" yaml:"headers,omitempty"`
	Transformers []string               `json:"transformers,omitempty" yaml:"transformers,omitempty"`
	Function     string                 `json:"function,omitempty" yaml:"function,omitempty"`
	Args         map[string]interface{} `json:"args,omitempty" yaml:"args,omitempty"`
	LoadType     string                 `json:"loadtype,omitempty" yaml:"loadtype,omitempty"`
}

// MethodOrDefault returns Method, defaulting to GET.
func (r Request) MethodOrDefault() string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}

// Edge is one entry of deps.
type Edge struct {
	From        []string    `json:"from" yaml:"from"`
	To          []string    `json:"to" yaml:"to"`
	Select      []Selection `json:"select" yaml:"select"`
	SelectWhere string      `json:"selectwhere,omitempty" yaml:"selectwhere,omitempty"`
	LoadType    string      `json:"loadtype,omitempty" yaml:"loadtype,omitempty"`
}

// FromContains reports whether name appears in the edge's From list.
func (e Edge) FromContains(name string) bool {
	for _, f := range e.From {
		if f == name {
			return true
		}
	}
	return false
}

// Dataset is one entry of datasets.
type Dataset struct {
	Name string   `json:"name" yaml:"name"`
	Data []string `json:"data" yaml:"data"`
}

// Manifest is the full, immutable document.
type Manifest struct {
	ID           string                     `json:"id" yaml:"id"`
	ConfigSchema map[string]CredentialField `json:"configSchema,omitempty" yaml:"configSchema,omitempty"`
	Transformers []Transformer              `json:"transformers,omitempty" yaml:"transformers,omitempty"`
	Reqs         []Request                  `json:"reqs" yaml:"reqs"`
	Deps         []Edge                     `json:"deps,omitempty" yaml:"deps,omitempty"`
	Datasets     []Dataset                  `json:"datasets" yaml:"datasets"`
}

// RequestByName looks up a request definition by name.
func (m *Manifest) RequestByName(name string) (Request, bool) {
	for _, r := range m.Reqs {
		if r.Name == name {
			return r, true
		}
	}
	return Request{}, false
}

// TransformerByName looks up a transformer definition by name.
func (m *Manifest) TransformerByName(name string) (Transformer, bool) {
	for _, t := range m.Transformers {
		if t.Name == name {
			return t, true
		}
	}
	return Transformer{}, false
}

// EdgesFrom returns every edge whose From list contains name, in manifest
// order.
func (m *Manifest) EdgesFrom(name string) []Edge {
	var out []Edge
	for _, e := range m.Deps {
		if e.FromContains(name) {
			out = append(out, e)
		}
	}
	return out
}
