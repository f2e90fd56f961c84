// Package types provides the shared type contracts of the conversion
// engine: jobs and options, the canonical material descriptor, result and
// warning records, source formats, method kinds, and the structured error
// taxonomy. It is the lowest-level package and depends on no other engine
// package.
package types
