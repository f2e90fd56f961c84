// Package material normalizes heterogeneous source material schemas into
// one canonical descriptor, synthesizes target-specific shading networks
// from it against a static profile registry, and validates the result.
// Extraction and synthesis are best-effort: degradation surfaces as
// warnings, and only a graph without its surface output is fatal.
package material
