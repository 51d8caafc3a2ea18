package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer maps loosely formatted user input onto a typed enum.
type Normalizer[T comparable] struct {
	values    map[string]T
	fallback  T
	validKeys []string
}

// NewNormalizer builds a normalizer from raw key/value pairs. Keys are
// trimmed and lower-cased before lookup.
func NewNormalizer[T comparable](values map[string]T, fallback T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		key := clean(k)
		normalized[key] = v
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &Normalizer[T]{values: normalized, fallback: fallback, validKeys: keys}
}

// Normalize returns the matching value or the fallback.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[clean(raw)]; ok {
		return v
	}
	return n.fallback
}

// NormalizeWithError is Normalize that reports unknown input. Empty input
// yields the fallback without error.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	cleaned := clean(raw)
	if cleaned == "" {
		return n.fallback, nil
	}
	if v, ok := n.values[cleaned]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.validKeys)
}

// ValidKeys returns the accepted keys in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.validKeys))
	copy(out, n.validKeys)
	return out
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
