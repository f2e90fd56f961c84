// Package engine wires the conversion pipeline together: jobs submitted
// here are probed, converted through the tiered method list, enriched with
// synthesized materials, validated, and written atomically to their target
// path, all on a bounded worker pool.
package engine
