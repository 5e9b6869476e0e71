package hostconfig

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads host.yaml and plugin-manifest.yaml from configDir,
// merges them over the built-in defaults, and validates the result —
// mirroring pkg/config/loader.go's Initialize entry point exactly:
// load, merge, validate, return.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading host configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load host configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("host configuration validation failed: %w", err)
	}

	log.Info("host configuration loaded",
		"inbox_capacity", cfg.InboxCapacity,
		"effective_max_bytes", cfg.EffectiveMaxBytes,
		"plugins_configured", len(cfg.PluginConfig))
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	hostYAML, err := loadHostYAML(configDir)
	if err != nil {
		return nil, err
	}
	manifestYAML, err := loadManifestYAML(configDir)
	if err != nil {
		return nil, err
	}

	merged := DefaultHostConfig()
	if err := mergo.Merge(merged, hostYAML, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging host.yaml over defaults: %w", err)
	}

	timeout := DefaultQueryTimeout
	if merged.Query != nil && merged.Query.TimeoutText != "" {
		d, perr := time.ParseDuration(merged.Query.TimeoutText)
		if perr != nil {
			slog.Warn("invalid query.timeout, using default", "value", merged.Query.TimeoutText, "default", timeout, "error", perr)
		} else {
			timeout = d
		}
	}

	return &Config{
		configDir:         configDir,
		InboxCapacity:     merged.Session.InboxCapacity,
		EffectiveMaxBytes: merged.Chunk.EffectiveMaxBytes,
		LegacyCompat:      merged.Chunk.LegacyCompat,
		QueryTimeout:      timeout,
		PluginConfig:      manifestYAML.Plugins,
	}, nil
}

func loadYAMLFile(configDir, filename string, target any, required bool) error {
	path := filepath.Join(configDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if required {
				return NewLoadError(filename, fmt.Errorf("%w: %s", ErrConfigNotFound, path))
			}
			return nil
		}
		return NewLoadError(filename, err)
	}
	data = ExpandEnv(data)
	if err := yaml.Unmarshal(data, target); err != nil {
		return NewLoadError(filename, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return nil
}

func loadHostYAML(configDir string) (*HostYAMLConfig, error) {
	cfg := &HostYAMLConfig{}
	if err := loadYAMLFile(configDir, "host.yaml", cfg, false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadManifestYAML(configDir string) (*ManifestYAMLConfig, error) {
	cfg := &ManifestYAMLConfig{Plugins: map[string]map[string]any{}}
	if err := loadYAMLFile(configDir, "plugin-manifest.yaml", cfg, false); err != nil {
		return nil, err
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]map[string]any{}
	}
	return cfg, nil
}
