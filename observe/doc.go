// Package observe provides observability primitives for snapshot fetching,
// caching and gating.
//
// It is a pure instrumentation library: no fetching, no storage, no I/O
// beyond exporter setup. Consumers wire the observer into the dispatcher,
// the cache and the gate engine through their options.
package observe
