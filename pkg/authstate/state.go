// Package authstate models the per-manifest authentication state that the
// token store persists and the OAuth2 coordinator and dependency resolver
// read and write.
package authstate

import "time"

// expirySafetyMargin is subtracted from a token's reported TTL so the
// engine treats a token as expired slightly before the server actually
// rejects it.
const expirySafetyMargin = 60 * time.Second

// State is the durable authentication document for one manifest identity:
// an access/refresh token pair, an absolute expiry instant, and the set of
// response values a selection has flagged `authy` for persistence.
//
// The field names and the expiry-margin convention are modeled on
// golang.org/x/oauth2.Token's shape (AccessToken, RefreshToken, Expiry),
// but the type stays plain time.Time rather than embedding oauth2.Token
// itself: that type's own Valid() method reads time.Now() internally,
// which would make IsExpired non-deterministic under test — this module
// needs an injected "now" instead.
type State struct {
	AccessToken  string                 `json:"accessToken,omitempty"`
	RefreshToken string                 `json:"refreshToken,omitempty"`
	Expiry       *time.Time             `json:"expiresAt,omitempty"`
	AuthyValues  map[string]interface{} `json:"authyValues"`
}

// New returns an empty state ready to accumulate authy values.
func New() *State {
	return &State{AuthyValues: make(map[string]interface{})}
}

// Clone returns a deep-enough copy so a child context can carry its own
// AuthyValues map without aliasing the parent's.
func (s *State) Clone() *State {
	if s == nil {
		return New()
	}
	out := &State{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		AuthyValues:  make(map[string]interface{}, len(s.AuthyValues)),
	}
	if s.Expiry != nil {
		expiry := *s.Expiry
		out.Expiry = &expiry
	}
	for k, v := range s.AuthyValues {
		out.AuthyValues[k] = v
	}
	return out
}

// IsExpired reports whether the access token should be considered unusable:
// no token at all, or an expiry instant that has already passed.
func (s *State) IsExpired(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	if s.Expiry == nil {
		return false
	}
	return !now.Before(*s.Expiry)
}

// HasRefreshToken reports whether a refresh token is available.
func (s *State) HasRefreshToken() bool {
	return s != nil && s.RefreshToken != ""
}

// UpdateAccessToken records a new access token and, when ttlSeconds is
// given, computes Expiry with the safety margin subtracted.
func (s *State) UpdateAccessToken(token string, ttlSeconds *int, now time.Time) {
	s.AccessToken = token
	if ttlSeconds == nil {
		return
	}
	expiry := now.Add(time.Duration(*ttlSeconds)*time.Second - expirySafetyMargin)
	s.Expiry = &expiry
}

// UpdateRefreshToken records a new refresh token.
func (s *State) UpdateRefreshToken(token string) {
	s.RefreshToken = token
}

// SaveAuthyValue persists a named value flagged `authy` by a selection.
func (s *State) SaveAuthyValue(name string, value interface{}) {
	if s.AuthyValues == nil {
		s.AuthyValues = make(map[string]interface{})
	}
	s.AuthyValues[name] = value
}

// GetAuthyValue looks up a previously persisted authy value.
func (s *State) GetAuthyValue(name string) (interface{}, bool) {
	if s == nil || s.AuthyValues == nil {
		return nil, false
	}
	v, ok := s.AuthyValues[name]
	return v, ok
}
