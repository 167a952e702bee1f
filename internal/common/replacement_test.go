package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// createTestLogger creates a logger for testing
func createTestLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func TestReplaceKeyReferences_Simple(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"invoice-api-token": "tok-12345"}

	input := "Authorization = Bearer {invoice-api-token}"
	expected := "Authorization = Bearer tok-12345"

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_Multiple(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"key1": "val1",
		"key2": "val2",
		"key3": "val3",
	}

	input := "key1={key1}, key2={key2}, key3={key3}"
	expected := "key1=val1, key2=val2, key3=val3"

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_MissingKey(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"other-key": "value"}

	input := "api_key = {missing-key}"
	expected := "api_key = {missing-key}" // Unchanged

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_MultipleOccurrences(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"key": "value"}

	input := "{key} and {key} and {key}"
	expected := "value and value and value"

	result := ReplaceKeyReferences(input, kvMap, logger)
	assert.Equal(t, expected, result)
}

func TestReplaceKeyReferences_EmptyInput(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"key": "value"}

	result := ReplaceKeyReferences("", kvMap, logger)
	assert.Equal(t, "", result)
}

func TestReplaceInMap_SourceParams(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"nbp_api_base":      "https://api.nbp.pl/api",
		"invoice-api-token": "tok-12345",
	}

	// Shaped like a REST data source definition's parameter map
	params := map[string]interface{}{
		"url":     "{nbp_api_base}/exchangerates/rates/a/eur/2025-01-08/",
		"timeout": 30,
		"headers": map[string]interface{}{
			"Authorization": "Bearer {invoice-api-token}",
		},
	}

	err := ReplaceInMap(params, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "https://api.nbp.pl/api/exchangerates/rates/a/eur/2025-01-08/", params["url"])
	assert.Equal(t, 30, params["timeout"])

	headers := params["headers"].(map[string]interface{})
	assert.Equal(t, "Bearer tok-12345", headers["Authorization"])
}

func TestReplaceInMap_ArrayElements(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"url1": "http://example1.com",
		"url2": "http://example2.com",
	}

	m := map[string]interface{}{
		"urls": []interface{}{"{url1}", "{url2}", "static-url"},
		"items": []interface{}{
			map[string]interface{}{"field": "{url1}"},
		},
	}

	err := ReplaceInMap(m, kvMap, logger)
	require.NoError(t, err)

	urls := m["urls"].([]interface{})
	assert.Equal(t, "http://example1.com", urls[0])
	assert.Equal(t, "http://example2.com", urls[1])
	assert.Equal(t, "static-url", urls[2])

	items := m["items"].([]interface{})
	item := items[0].(map[string]interface{})
	assert.Equal(t, "http://example1.com", item["field"])
}

func TestReplaceInStruct_ModelEndpoints(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"anthropic-api-key": "sk-ant-123",
		"openai-api-key":    "sk-oai-456",
	}

	config := &Config{
		Models: ModelsConfig{
			Endpoints: []ModelEndpoint{
				{Provider: "anthropic", Model: "claude-sonnet-4-5", APIKey: "{anthropic-api-key}"},
				{Provider: "openai", Model: "gpt-4o", APIKey: "{openai-api-key}"},
				{Provider: "local", Model: "llama3", BaseURL: "http://localhost:11434"},
			},
		},
	}

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-123", config.Models.Endpoints[0].APIKey)
	assert.Equal(t, "sk-oai-456", config.Models.Endpoints[1].APIKey)
	assert.Equal(t, "http://localhost:11434", config.Models.Endpoints[2].BaseURL)
}

func TestReplaceInStruct_NestedAndSliceFields(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{
		"data-root":   "/srv/scribo/documents",
		"exclude-one": "noisy pattern",
	}

	config := &Config{
		Storage: StorageConfig{DataRoot: "{data-root}"},
		WebSocket: WebSocketConfig{
			ExcludePatterns: []string{"{exclude-one}", "static"},
		},
	}

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "/srv/scribo/documents", config.Storage.DataRoot)
	assert.Equal(t, "noisy pattern", config.WebSocket.ExcludePatterns[0])
	assert.Equal(t, "static", config.WebSocket.ExcludePatterns[1])
}

func TestReplaceInStruct_UnexportedFields(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"key": "value"}

	type testStruct struct {
		Exported   string
		unexported string // Should be skipped
	}

	s := &testStruct{
		Exported:   "{key}",
		unexported: "{key}",
	}

	err := ReplaceInStruct(s, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "value", s.Exported)
	assert.Equal(t, "{key}", s.unexported) // Unchanged
}

func TestReplaceInStruct_NilPointer(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"name": "resolved"}

	type inner struct {
		Field string
	}
	type outer struct {
		Name  string
		Inner *inner
	}

	s := &outer{
		Name:  "{name}",
		Inner: nil, // Nil pointer should be handled gracefully
	}

	err := ReplaceInStruct(s, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "resolved", s.Name)
	assert.Nil(t, s.Inner)
}

func TestReplaceInStruct_NotPointer(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"key": "value"}

	type testStruct struct {
		Name string
	}

	err := ReplaceInStruct(testStruct{Name: "{key}"}, kvMap, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a pointer")
}

func TestReplaceInStruct_NotStruct(t *testing.T) {
	logger := createTestLogger()
	kvMap := map[string]string{"key": "value"}

	str := "test"

	err := ReplaceInStruct(&str, kvMap, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a struct pointer")
}
