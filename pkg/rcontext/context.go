// Package rcontext implements the Request Context carried along a traversal
// path: credentials, current auth state, system variables, and the
// extractedData accumulated from root to the current request. Contexts are
// copy-on-extend — a child never mutates its parent.
package rcontext

import "github.com/blackcoderx/precog/pkg/authstate"

// Reserved system variable names, resolved ahead of authyValues,
// extractedData, and credentials (in that order).
const (
	VarPrecogState         = "precog_state"
	VarPrecogRootURI       = "precog_root_uri"
	VarPrecogRedirectURI   = "precog_redirect_uri"
	VarWskRedirectURI      = "wsk_to_rsk_redirect_uri"
	VarWskClientID         = "wsk_to_rsk_client_id"
	VarWskClientSecret     = "wsk_to_rsk_client_secret"
	VarWskOAuth2Code       = "wsk_to_rsk_oauth2_code"
	VarWskAuthToken        = "wsk_to_rsk_auth_token"
	VarWskRefreshToken     = "wsk_to_rsk_refresh_token"
	credentialClientID     = "Client Id"
	credentialClientSecret = "Client Secret"
)

// Context is the bag of bindings carried along a single traversal path.
type Context struct {
	Credentials     map[string]interface{}
	AuthState       *authstate.State
	SystemVariables map[string]interface{}
	ExtractedData   map[string]interface{}
}

// New builds an initial context. credentials and systemVariables are stored
// by reference — callers must not mutate them after handing them to a
// Context. ExtractedData starts as a fresh empty map.
func New(credentials map[string]interface{}, auth *authstate.State, systemVariables map[string]interface{}) *Context {
	return &Context{
		Credentials:     credentials,
		AuthState:       auth,
		SystemVariables: systemVariables,
		ExtractedData:   map[string]interface{}{},
	}
}

// Resolve implements expr.Vars: reserved system variables, then
// authState.authyValues, then extractedData, then credentials — first hit
// wins.
func (c *Context) Resolve(name string) (interface{}, bool) {
	if v, ok := c.resolveReserved(name); ok {
		return v, true
	}
	if c.AuthState != nil {
		if v, ok := c.AuthState.GetAuthyValue(name); ok {
			return v, true
		}
	}
	if v, ok := c.ExtractedData[name]; ok {
		return v, true
	}
	if v, ok := c.Credentials[name]; ok {
		return v, true
	}
	return nil, false
}

func (c *Context) resolveReserved(name string) (interface{}, bool) {
	switch name {
	case VarPrecogState, VarPrecogRootURI, VarPrecogRedirectURI, VarWskRedirectURI, VarWskOAuth2Code:
		v, ok := c.SystemVariables[name]
		return v, ok
	case VarWskClientID:
		v, ok := c.Credentials[credentialClientID]
		return v, ok
	case VarWskClientSecret:
		v, ok := c.Credentials[credentialClientSecret]
		return v, ok
	case VarWskAuthToken:
		if c.AuthState == nil || c.AuthState.AccessToken == "" {
			return nil, false
		}
		return c.AuthState.AccessToken, true
	case VarWskRefreshToken:
		if c.AuthState == nil || c.AuthState.RefreshToken == "" {
			return nil, false
		}
		return c.AuthState.RefreshToken, true
	default:
		return nil, false
	}
}

// WithExtracted returns a child context whose extractedData is the parent's
// extractedData overlaid with extra — the parent is left untouched. Every
// other field is shared by structural copy, per the copy-on-extend rule.
func (c *Context) WithExtracted(extra map[string]interface{}) *Context {
	merged := make(map[string]interface{}, len(c.ExtractedData)+len(extra))
	for k, v := range c.ExtractedData {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &Context{
		Credentials:     c.Credentials,
		AuthState:       c.AuthState,
		SystemVariables: c.SystemVariables,
		ExtractedData:   merged,
	}
}

// WithSystemVariable returns a child context with one additional (or
// overridden) system variable. Used by the Executor to stamp precog_state
// before interpolating an authorization URL.
func (c *Context) WithSystemVariable(name string, value interface{}) *Context {
	merged := make(map[string]interface{}, len(c.SystemVariables)+1)
	for k, v := range c.SystemVariables {
		merged[k] = v
	}
	merged[name] = value
	return &Context{
		Credentials:     c.Credentials,
		AuthState:       c.AuthState,
		SystemVariables: merged,
		ExtractedData:   c.ExtractedData,
	}
}
