package cache

// Policy configures caching behavior.
type Policy struct {
	// Enabled turns caching on. A disabled cache misses every Get and
	// drops every Put, so callers always reach the live source.
	Enabled bool

	// Namespace is the namespace reads and writes are scoped to.
	// Default: "live"
	Namespace string

	// MaxEntryBytes rejects payloads larger than this. Zero means no limit.
	MaxEntryBytes int64
}

// DefaultPolicy returns the default caching policy.
// Enabled, Namespace "live", MaxEntryBytes 64 MiB.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:       true,
		Namespace:     DefaultNamespace,
		MaxEntryBytes: 64 << 20,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{Namespace: DefaultNamespace}
}

func (p Policy) withDefaults() Policy {
	if p.Namespace == "" {
		p.Namespace = DefaultNamespace
	}
	return p
}
