// Package cache provides a content-addressed, scenario-scoped snapshot cache.
//
// Entries are addressed by subject, sub-scope, as-of date and namespace; the
// same Key always denotes the same logical query. The live namespace holds the
// working cache, and named scenario namespaces hold frozen copies that can be
// replayed byte-for-byte after the live cache has been cleared or rebuilt.
//
// Storage is pluggable through Store: a directory tree (FileStore), Redis
// (RedisStore), or process memory (MemoryStore).
package cache
