package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
)

type ConfigHandler struct {
	logger arbor.ILogger
	config *common.Config
}

func NewConfigHandler(logger arbor.ILogger, config *common.Config) *ConfigHandler {
	return &ConfigHandler{
		logger: logger,
		config: config,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Version string         `json:"version"`
	Build   string         `json:"build"`
	Port    int            `json:"port"`
	Host    string         `json:"host"`
	Config  *common.Config `json:"config"`
}

// GetConfig handles GET /api/config. Credentials are blanked before the
// config leaves the process: DSN, model API keys, and the evidence token
// never appear in API responses.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sanitized := h.sanitize()

	WriteJSON(w, http.StatusOK, ConfigResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Port:    sanitized.Server.Port,
		Host:    sanitized.Server.Host,
		Config:  sanitized,
	})
}

func (h *ConfigHandler) sanitize() *common.Config {
	c := *h.config

	if c.Database.DSN != "" {
		c.Database.DSN = "***"
	}
	if c.Evidence.Token != "" {
		c.Evidence.Token = "***"
	}

	endpoints := make([]common.ModelEndpoint, len(c.Models.Endpoints))
	copy(endpoints, c.Models.Endpoints)
	for i := range endpoints {
		if endpoints[i].APIKey != "" {
			endpoints[i].APIKey = "***"
		}
	}
	c.Models.Endpoints = endpoints

	return &c
}
