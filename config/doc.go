// Package config loads snapgate configuration.
//
// Configuration comes from an optional YAML file, overridden by environment
// variables prefixed with SNAPGATE_ (nested keys join with underscores, so
// dispatch.workers is SNAPGATE_DISPATCH_WORKERS). String values that name
// paths, addresses or headers may reference the environment as ${VAR}; a
// reference to an unset variable is an error rather than an empty string.
//
// The loaded Config converts into the option structs of the cache, dispatch,
// gate, source and observe packages.
package config
