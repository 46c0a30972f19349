package cache

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultNamespace is the namespace of the working cache.
	DefaultNamespace = "live"

	// MaxKeyLength is the maximum allowed length of an encoded key path.
	MaxKeyLength = 512

	// DateLayout is the as-of date layout used in key paths.
	DateLayout = "2006-01-02"

	entrySuffix = ".snap"
)

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Key identifies one cached payload: (subject, sub-scope, as-of date, namespace).
// Keys are values; the zero Key is invalid.
type Key struct {
	subject   string
	subScope  string
	asOf      time.Time
	namespace string
}

// NewKey builds a key in the default namespace. The as-of time is reduced to
// its calendar date so two fetches on the same day share a key.
func NewKey(subject, subScope string, asOf time.Time) (Key, error) {
	k := Key{
		subject:   subject,
		subScope:  subScope,
		asOf:      Date(asOf),
		namespace: DefaultNamespace,
	}
	if err := ValidateKey(k); err != nil {
		return Key{}, err
	}
	return k, nil
}

// MustKey is NewKey for tests and literals; it panics on an invalid key.
func MustKey(subject, subScope string, asOf time.Time) Key {
	k, err := NewKey(subject, subScope, asOf)
	if err != nil {
		panic(err)
	}
	return k
}

// Date truncates t to its calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateKey checks that a key can be stored.
func ValidateKey(k Key) error {
	if strings.TrimSpace(k.subject) == "" {
		return fmt.Errorf("%w: subject is empty", ErrInvalidKey)
	}
	if k.asOf.IsZero() {
		return fmt.Errorf("%w: as-of date is zero", ErrInvalidKey)
	}
	if err := ValidateNamespace(k.namespace); err != nil {
		return err
	}
	if len(k.Path()) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ValidateNamespace checks a namespace or scenario name.
func ValidateNamespace(name string) error {
	if !namespacePattern.MatchString(name) || len(name) > 64 {
		return fmt.Errorf("%w: %q", ErrInvalidScenario, name)
	}
	return nil
}

// SubjectID returns the identity the key addresses.
func (k Key) SubjectID() string { return k.subject }

// SubScope returns the query sub-scope, possibly empty.
func (k Key) SubScope() string { return k.subScope }

// AsOf returns the key's civil date at UTC midnight.
func (k Key) AsOf() time.Time { return k.asOf }

// Namespace returns the namespace the key is bound to.
func (k Key) Namespace() string { return k.namespace }

// InNamespace returns a copy of the key bound to another namespace.
func (k Key) InNamespace(ns string) Key {
	k.namespace = ns
	return k
}

// Name returns the namespace-relative entry name:
// {SubjectID}_{SubScope}_{AsOfDate}.snap with components escaped.
func (k Key) Name() string {
	return escape(k.subject) + "_" + escape(k.subScope) + "_" + k.asOf.Format(DateLayout) + entrySuffix
}

// Path returns {Namespace}/{Name}.
func (k Key) Path() string {
	return k.namespace + "/" + k.Name()
}

func (k Key) String() string { return k.Path() }

// parseName reverses Name for a listing in namespace ns.
func parseName(ns, name string) (Key, bool) {
	base, ok := strings.CutSuffix(name, entrySuffix)
	if !ok {
		return Key{}, false
	}
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return Key{}, false
	}
	subject, ok1 := unescape(parts[0])
	subScope, ok2 := unescape(parts[1])
	asOf, err := time.Parse(DateLayout, parts[2])
	if !ok1 || !ok2 || err != nil {
		return Key{}, false
	}
	k := Key{subject: subject, subScope: subScope, asOf: asOf, namespace: ns}
	if ValidateKey(k) != nil {
		return Key{}, false
	}
	return k, true
}

const hexDigits = "0123456789ABCDEF"

// escape percent-encodes every byte outside [A-Za-z0-9.-] so that the
// separator '_' and path characters never appear inside a component.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}

func unescape(s string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			if !isSafe(c) {
				return "", false
			}
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", false
		}
		hi, lo := strings.IndexByte(hexDigits, s[i+1]), strings.IndexByte(hexDigits, s[i+2])
		if hi < 0 || lo < 0 {
			return "", false
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), true
}

func isSafe(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-'
}
