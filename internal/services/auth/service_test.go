package auth

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type memoryKV struct {
	values map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}

func (m *memoryKV) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &interfaces.KeyValuePair{Key: key, Value: v}, nil
}

func (m *memoryKV) Set(_ context.Context, key, value, _ string) error {
	m.values[key] = value
	return nil
}

func (m *memoryKV) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	_, existed := m.values[key]
	return !existed, m.Set(ctx, key, value, description)
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryKV) DeleteAll(context.Context) error {
	m.values = map[string]string{}
	return nil
}

func (m *memoryKV) List(context.Context) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	for k, v := range m.values {
		pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
	}
	return pairs, nil
}

func (m *memoryKV) GetAll(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryKV) ListByPrefix(_ context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	for k, v := range m.values {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
		}
	}
	return pairs, nil
}

func enabledService(t *testing.T, kv *memoryKV) *Service {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Auth.Enabled = true
	return NewService(cfg, kv, arbor.NewLogger())
}

func storeKey(t *testing.T, kv *memoryKV, name, key string, scopes ...string) {
	t.Helper()
	data, err := json.Marshal(models.APIKeyEntry{Name: name, Key: key, Scopes: scopes})
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), apiKeyPrefix+name, string(data), ""))
}

func TestDisabledGrantsEverything(t *testing.T) {
	cfg := common.NewDefaultConfig()
	svc := NewService(cfg, newMemoryKV(), arbor.NewLogger())

	assert.False(t, svc.Enabled())

	r := httptest.NewRequest("POST", "/api/generate", nil)
	principal, err := svc.Authenticate(r)
	require.NoError(t, err)
	assert.True(t, principal.Allows(interfaces.ScopeWrite))
	assert.True(t, svc.HasScope(r, interfaces.ScopeRead))
}

func TestAPIKeyScheme(t *testing.T) {
	kv := newMemoryKV()
	storeKey(t, kv, "accountant", "sk-reader-1", "read")
	storeKey(t, kv, "pipeline", "sk-writer-1", "write")
	svc := enabledService(t, kv)

	t.Run("read key", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/templates", nil)
		r.Header.Set(apiKeyHeader, "sk-reader-1")

		principal, err := svc.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "accountant", principal.Name)
		assert.Equal(t, "api_key", principal.Scheme)
		assert.True(t, principal.Allows(interfaces.ScopeRead))
		assert.False(t, principal.Allows(interfaces.ScopeWrite))
	})

	t.Run("write implies read", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/generate", nil)
		r.Header.Set(apiKeyHeader, "sk-writer-1")

		assert.True(t, svc.HasScope(r, interfaces.ScopeRead))
		assert.True(t, svc.HasScope(r, interfaces.ScopeWrite))
	})

	t.Run("unknown key", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/templates", nil)
		r.Header.Set(apiKeyHeader, "sk-nope")

		_, err := svc.Authenticate(r)
		assert.Error(t, err)
		assert.False(t, svc.HasScope(r, interfaces.ScopeRead))
	})
}

func TestBasicScheme(t *testing.T) {
	kv := newMemoryKV()
	require.NoError(t, kv.Set(context.Background(), basicUserKey, "ksiegowa", ""))
	require.NoError(t, kv.Set(context.Background(), basicPassKey, "tajne-haslo", ""))
	svc := enabledService(t, kv)

	r := httptest.NewRequest("GET", "/", nil)
	r.SetBasicAuth("ksiegowa", "tajne-haslo")

	principal, err := svc.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "basic", principal.Scheme)
	assert.True(t, principal.Allows(interfaces.ScopeWrite))

	bad := httptest.NewRequest("GET", "/", nil)
	bad.SetBasicAuth("ksiegowa", "zle-haslo")
	_, err = svc.Authenticate(bad)
	assert.Error(t, err)
}

func TestBearerScheme(t *testing.T) {
	kv := newMemoryKV()
	require.NoError(t, kv.Set(context.Background(), bearerTokenKey, "static-token", ""))
	storeKey(t, kv, "ci", "sk-ci-1", "write")
	svc := enabledService(t, kv)

	t.Run("static token", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/generate", nil)
		r.Header.Set("Authorization", "Bearer static-token")

		principal, err := svc.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "bearer", principal.Scheme)
		assert.True(t, principal.Allows(interfaces.ScopeWrite))
	})

	t.Run("api key as bearer", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/generate", nil)
		r.Header.Set("Authorization", "Bearer sk-ci-1")

		principal, err := svc.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "ci", principal.Name)
		assert.Equal(t, "bearer", principal.Scheme)
	})

	t.Run("bad token", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/generate", nil)
		r.Header.Set("Authorization", "Bearer nope")
		_, err := svc.Authenticate(r)
		assert.Error(t, err)
	})
}

func TestNoCredentials(t *testing.T) {
	svc := enabledService(t, newMemoryKV())
	r := httptest.NewRequest("GET", "/api/templates", nil)
	_, err := svc.Authenticate(r)
	assert.Error(t, err)
}

func TestSchemeGating(t *testing.T) {
	kv := newMemoryKV()
	storeKey(t, kv, "ops", "sk-ops", "write")
	cfg := common.NewDefaultConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.Schemes = []string{"basic"} // api_key disabled
	svc := NewService(cfg, kv, arbor.NewLogger())

	r := httptest.NewRequest("GET", "/api/templates", nil)
	r.Header.Set(apiKeyHeader, "sk-ops")
	_, err := svc.Authenticate(r)
	assert.Error(t, err)
}

func TestEntryWithoutScopesDefaultsToRead(t *testing.T) {
	kv := newMemoryKV()
	storeKey(t, kv, "legacy", "sk-legacy")
	svc := enabledService(t, kv)

	r := httptest.NewRequest("GET", "/api/templates", nil)
	r.Header.Set(apiKeyHeader, "sk-legacy")

	principal, err := svc.Authenticate(r)
	require.NoError(t, err)
	assert.True(t, principal.Allows(interfaces.ScopeRead))
	assert.False(t, principal.Allows(interfaces.ScopeWrite))
}
