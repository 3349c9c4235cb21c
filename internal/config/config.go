package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nimproxy/internal/core"
	"nimproxy/internal/util"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when NIM_API_KEY is not set.
var ErrMissingAPIKey = errors.New("NIM_API_KEY environment variable is not defined")

// DefaultModelMappings is the built-in client-facing to NIM model table.
var DefaultModelMappings = map[string]string{
	"deepseek-r1-0528":       "deepseek-ai/deepseek-r1-0528",
	"deepseek-v3.1":          "deepseek-ai/deepseek-v3.1",
	"deepseek-v3.1-terminus": "deepseek-ai/deepseek-v3.1-terminus",
	"deepseek-v3.2":          "deepseek-ai/deepseek-v3.2",
	"GLM 4.7":                "z-ai/glm4.7",
}

// ServerConfig server configuration
type ServerConfig struct {
	Port               string
	GinMode            string
	CORSAllowOrigin    string
	NIMBaseURL         string
	NIMAPIKey          string
	ModelsConfigPath   string
	Models             *core.ModelMapping
	HTTPClientSettings HTTPClientSettings
	Logger             core.Logger
}

// HTTPClientSettings HTTP client configuration
type HTTPClientSettings struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
	// RequestTimeout bounds the whole upstream exchange. Zero means no limit.
	RequestTimeout time.Duration
}

// DefaultHTTPClientSettings default HTTP client settings
func DefaultHTTPClientSettings() HTTPClientSettings {
	return HTTPClientSettings{
		MaxIdleConns:        core.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: core.HTTPMaxIdleConnsPerHost,
		MaxConnsPerHost:     core.HTTPMaxConnsPerHost,
		IdleConnTimeout:     core.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: core.HTTPTLSHandshakeTimeout,
	}
}

// LoadModelsConfig loads model configuration mapping from a JSON or YAML file.
// Both {"models": {...}} and a bare list of ids are accepted.
func LoadModelsConfig(path string) (core.ModelsConfig, error) {
	var config core.ModelsConfig

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return config, fmt.Errorf("failed to read %s: %w", path, err)
	}

	unmarshal := util.UnmarshalJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	}

	if err := unmarshal(data, &config); err != nil || config.Models == nil {
		var modelIDs []string
		if listErr := unmarshal(data, &modelIDs); listErr != nil {
			if err == nil {
				err = listErr
			}
			return config, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		config.Models = make(map[string]string, len(modelIDs))
		for _, modelID := range modelIDs {
			config.Models[modelID] = modelID
		}
	}

	if len(config.Models) == 0 {
		return config, fmt.Errorf("no models defined in %s", path)
	}
	for client, backend := range config.Models {
		if strings.TrimSpace(client) == "" || strings.TrimSpace(backend) == "" {
			return config, fmt.Errorf("invalid model mapping %q -> %q in %s", client, backend, path)
		}
	}

	return config, nil
}

// LoadModelMapping returns the mapping from path, or the built-in table when path is empty.
func LoadModelMapping(path string, logger core.Logger) (*core.ModelMapping, error) {
	if path == "" {
		return core.NewModelMapping(DefaultModelMappings), nil
	}

	config, err := LoadModelsConfig(path)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded %d models from %s", len(config.Models), path)
	return core.NewModelMapping(config.Models), nil
}

// LoadServerConfigFromEnv loads server config from environment variables
func LoadServerConfigFromEnv(logger core.Logger) (ServerConfig, error) {
	apiKey := strings.TrimSpace(os.Getenv("NIM_API_KEY"))
	if apiKey == "" {
		return ServerConfig{}, ErrMissingAPIKey
	}
	logger.Info("Using NIM API key %s", util.MaskSecret(apiKey))

	baseURL := strings.TrimRight(util.GetEnvWithDefault("NIM_API_BASE", core.NIMDefaultBaseURL), "/")
	modelsPath := util.GetEnvWithDefault("MODELS_CONFIG", "")

	models, err := LoadModelMapping(modelsPath, logger)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("failed to load models config: %w", err)
	}

	httpSettings := DefaultHTTPClientSettings()
	if raw := util.GetEnvWithDefault("UPSTREAM_TIMEOUT", ""); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil || timeout < 0 {
			logger.Warn("Invalid UPSTREAM_TIMEOUT value '%s', upstream calls will not time out", raw)
		} else {
			httpSettings.RequestTimeout = timeout
		}
	}

	config := ServerConfig{
		Port:               util.GetEnvWithDefault("PORT", core.DefaultPort),
		GinMode:            util.GetEnvWithDefault("GIN_MODE", core.DefaultGinMode),
		CORSAllowOrigin:    util.GetEnvWithDefault("CORS_ALLOW_ORIGIN", core.DefaultCORSOrigin),
		NIMBaseURL:         baseURL,
		NIMAPIKey:          apiKey,
		ModelsConfigPath:   modelsPath,
		Models:             models,
		HTTPClientSettings: httpSettings,
	}

	return config, nil
}
