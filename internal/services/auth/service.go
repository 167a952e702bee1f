package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// KV keys the schemes resolve against. API keys are stored one entry per
// key under the name prefix; basic and bearer credentials are single values.
const (
	apiKeyPrefix   = "auth_key_"
	basicUserKey   = "auth_basic_user"
	basicPassKey   = "auth_basic_password"
	bearerTokenKey = "auth_bearer_token"
)

// apiKeyHeader carries the key for the api_key scheme.
const apiKeyHeader = "X-API-Key"

// Service authenticates API requests against credentials in the KV store.
// A disabled service grants every scope, which is the default for local
// single-user deployments.
type Service struct {
	config  *common.Config
	kv      interfaces.KeyValueStorage
	logger  arbor.ILogger
	schemes map[string]bool
}

var _ interfaces.AuthService = (*Service)(nil)

// NewService creates the request authentication service.
func NewService(config *common.Config, kv interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	schemes := make(map[string]bool, len(config.Auth.Schemes))
	for _, scheme := range config.Auth.Schemes {
		schemes[strings.ToLower(scheme)] = true
	}
	return &Service{
		config:  config,
		kv:      kv,
		logger:  logger,
		schemes: schemes,
	}
}

// Enabled reports whether authentication is enforced.
func (s *Service) Enabled() bool {
	return s.config.Auth.Enabled && s.kv != nil
}

// Authenticate resolves the caller identity, trying api_key, basic and
// bearer in that order. Only schemes the configuration enables are tried.
func (s *Service) Authenticate(r *http.Request) (*interfaces.Principal, error) {
	if !s.Enabled() {
		return &interfaces.Principal{
			Name:   "anonymous",
			Scheme: "none",
			Scopes: []interfaces.Scope{interfaces.ScopeWrite},
		}, nil
	}

	if s.schemes["api_key"] {
		if key := r.Header.Get(apiKeyHeader); key != "" {
			return s.matchAPIKey(r, key, "api_key")
		}
	}

	if s.schemes["basic"] {
		if user, pass, ok := r.BasicAuth(); ok {
			return s.matchBasic(r, user, pass)
		}
	}

	if s.schemes["bearer"] {
		if token, ok := bearerToken(r); ok {
			return s.matchBearer(r, token)
		}
	}

	return nil, fmt.Errorf("no credentials presented")
}

// HasScope reports whether the request carries the given scope. Write
// implies read.
func (s *Service) HasScope(r *http.Request, scope interfaces.Scope) bool {
	principal, err := s.Authenticate(r)
	if err != nil {
		return false
	}
	return principal.Allows(scope)
}

// matchAPIKey compares the presented key against every stored entry. The
// store is small (a handful of keys); listing on each request keeps
// revocation immediate.
func (s *Service) matchAPIKey(r *http.Request, presented, scheme string) (*interfaces.Principal, error) {
	pairs, err := s.kv.ListByPrefix(r.Context(), apiKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	for _, pair := range pairs {
		var entry models.APIKeyEntry
		if err := json.Unmarshal([]byte(pair.Value), &entry); err != nil {
			s.logger.Warn().Str("key", pair.Key).Msg("Malformed API key entry in KV store")
			continue
		}
		if !equal(entry.Key, presented) {
			continue
		}
		name := entry.Name
		if name == "" {
			name = strings.TrimPrefix(pair.Key, apiKeyPrefix)
		}
		return &interfaces.Principal{
			Name:   name,
			Scheme: scheme,
			Scopes: parseScopes(entry.Scopes),
		}, nil
	}
	return nil, fmt.Errorf("unknown API key")
}

// matchBasic checks the single basic-auth credential pair. Basic callers
// get write scope; the scheme exists for browser access to the UI.
func (s *Service) matchBasic(r *http.Request, user, pass string) (*interfaces.Principal, error) {
	storedUser, err := s.kv.Get(r.Context(), basicUserKey)
	if err != nil {
		return nil, fmt.Errorf("basic auth is not configured")
	}
	storedPass, err := s.kv.Get(r.Context(), basicPassKey)
	if err != nil {
		return nil, fmt.Errorf("basic auth is not configured")
	}
	if !equal(user, storedUser) || !equal(pass, storedPass) {
		return nil, fmt.Errorf("invalid credentials")
	}
	return &interfaces.Principal{
		Name:   user,
		Scheme: "basic",
		Scopes: []interfaces.Scope{interfaces.ScopeWrite},
	}, nil
}

// matchBearer accepts either the static bearer token or any stored API key
// presented as a bearer token.
func (s *Service) matchBearer(r *http.Request, token string) (*interfaces.Principal, error) {
	if stored, err := s.kv.Get(r.Context(), bearerTokenKey); err == nil && equal(token, stored) {
		return &interfaces.Principal{
			Name:   "bearer",
			Scheme: "bearer",
			Scopes: []interfaces.Scope{interfaces.ScopeWrite},
		}, nil
	}
	if principal, err := s.matchAPIKey(r, token, "bearer"); err == nil {
		return principal, nil
	}
	return nil, fmt.Errorf("invalid bearer token")
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// parseScopes maps stored scope names onto scopes; unknown names are
// dropped and an entry without scopes defaults to read.
func parseScopes(names []string) []interfaces.Scope {
	var scopes []interfaces.Scope
	for _, name := range names {
		switch interfaces.Scope(strings.ToLower(name)) {
		case interfaces.ScopeRead:
			scopes = append(scopes, interfaces.ScopeRead)
		case interfaces.ScopeWrite:
			scopes = append(scopes, interfaces.ScopeWrite)
		}
	}
	if len(scopes) == 0 {
		scopes = []interfaces.Scope{interfaces.ScopeRead}
	}
	return scopes
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
