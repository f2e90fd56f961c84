package probe

import (
	"time"

	"github.com/crisslavik/xStage/types"
)

// Capability names consulted by the material synthesizer.
const (
	CapabilityMaterialX = "materialx"
)

// Snapshot is a point-in-time, read-only record of which conversion
// backends and capabilities are usable in the current environment. It is
// shared across concurrently running jobs and never mutated mid-job; the
// prober replaces it wholesale on Refresh.
type Snapshot struct {
	// Generation increases monotonically with every probe run.
	Generation uint64 `json:"generation"`

	// Fingerprint identifies the environment the snapshot was taken in.
	// Used as the cache key; a fingerprint mismatch invalidates the cache.
	Fingerprint string `json:"fingerprint"`

	// Methods records availability per (format, method kind).
	Methods map[types.SourceFormat]map[types.MethodKind]bool `json:"methods"`

	// Capabilities records availability of renderer-facing dependencies,
	// e.g. the MaterialX node library.
	Capabilities map[string]bool `json:"capabilities"`

	ProbedAt time.Time `json:"probed_at"`
}

// Available reports whether the given method kind is usable for a format.
// Unknown formats and kinds read as unavailable.
func (s *Snapshot) Available(format types.SourceFormat, kind types.MethodKind) bool {
	if s == nil {
		return false
	}
	kinds, ok := s.Methods[format]
	if !ok {
		return false
	}
	return kinds[kind]
}

// HasCapability reports whether a named capability is present.
func (s *Snapshot) HasCapability(name string) bool {
	if s == nil {
		return false
	}
	return s.Capabilities[name]
}
