package hostconfig

import (
	"time"

	"github.com/mitre/hipcheck-fabric/internal/chunk"
	"github.com/mitre/hipcheck-fabric/internal/rpc/session"
)

// DefaultHostConfig returns the built-in host.yaml defaults, applied before
// any user override is merged on top — mirrors pkg/config/defaults.go's
// role in the teacher's loader.
func DefaultHostConfig() *HostYAMLConfig {
	return &HostYAMLConfig{
		Session: &SessionConfig{InboxCapacity: session.DefaultInboxCapacity},
		Chunk: &ChunkConfig{
			EffectiveMaxBytes: chunk.DefaultOptions().EffectiveMax,
			LegacyCompat:      false,
		},
		Query: &QueryConfig{TimeoutText: "30s"},
	}
}

// DefaultQueryTimeout is used if a user config supplies no timeout at all.
const DefaultQueryTimeout = 30 * time.Second
