// Package common provides shared utilities and default configuration.
package common

// DefaultKVValue represents a default key/value pair that is seeded on startup.
type DefaultKVValue struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// GetDefaultKVValues returns the list of default KV values seeded on startup.
// This is the single source of truth for default values.
func GetDefaultKVValues() []DefaultKVValue {
	return []DefaultKVValue{
		{
			Key:         "nbp_api_base",
			Value:       "https://api.nbp.pl/api",
			Description: "NBP web API base URL (table A exchange rates)",
		},
		{
			Key:         "github_api_base",
			Value:       "https://api.github.com",
			Description: "GitHub API base URL for work evidence lookups",
		},
	}
}
