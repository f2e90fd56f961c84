// Package convert implements the tiered conversion pipeline: method
// selection over an availability snapshot, the attempt-by-attempt
// orchestrator with per-attempt timeouts and atomic output placement,
// the built-in conversion backends (in-process glTF plugin, external
// usdcat/fbx2usd tools, best-effort mesh loaders), time-sample planning,
// and the advisory output-path lock.
package convert
