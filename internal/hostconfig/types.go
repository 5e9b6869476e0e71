// Package hostconfig implements the two-file YAML configuration layer
// SPEC_FULL.md's Configuration section describes, modeled directly on
// pkg/config/loader.go: one file for host-wide fabric settings (session
// inbox capacity, chunk byte budget, legacy-compat, query timeout) and one
// for the per-plugin startup manifest, which is loaded into
// Config.PluginConfig; nothing in this module sends it to a plugin's
// set_config control endpoint.
package hostconfig

import "time"

// HostYAMLConfig is the decoded shape of host.yaml.
type HostYAMLConfig struct {
	Session *SessionConfig `yaml:"session"`
	Chunk   *ChunkConfig   `yaml:"chunk"`
	Query   *QueryConfig   `yaml:"query"`
}

// SessionConfig holds the session multiplexer (internal/rpc/session)
// setting. It is loaded and validated into Config.InboxCapacity, but
// session.New does not take it: every Multiplexer uses
// session.DefaultInboxCapacity.
type SessionConfig struct {
	// InboxCapacity bounds each session's inbound fragment channel.
	InboxCapacity int `yaml:"inbox_capacity,omitempty"`
}

// ChunkConfig controls the chunker/synthesizer (internal/chunk).
type ChunkConfig struct {
	EffectiveMaxBytes int  `yaml:"effective_max_bytes,omitempty"`
	LegacyCompat      bool `yaml:"legacy_compat,omitempty"`
}

// QueryConfig holds the per-query timeout setting, the policy hook spec.md
// §9's open question recommends rather than prescribes. The value is loaded
// into Config.QueryTimeout; the dispatcher does not apply it to any query.
type QueryConfig struct {
	Timeout time.Duration `yaml:"-"`
	// TimeoutText is the raw YAML string (e.g. "30s"); the loader parses it
	// into Config.QueryTimeout, since time.Duration has no yaml.v3 decode
	// hook by default. The loader does not set Timeout.
	TimeoutText string `yaml:"timeout,omitempty"`
}

// ManifestYAMLConfig is the decoded shape of plugin-manifest.yaml: a
// startup config payload per plugin, keyed by "publisher/name". The loader
// stores it in Config.PluginConfig; no code sends it to a plugin's
// set_config endpoint.
type ManifestYAMLConfig struct {
	Plugins map[string]map[string]any `yaml:"plugins"`
}

// Config is the fully loaded, validated, ready-to-use configuration.
type Config struct {
	configDir         string
	InboxCapacity     int
	EffectiveMaxBytes int
	LegacyCompat      bool
	QueryTimeout      time.Duration
	PluginConfig      map[string]map[string]any
}
