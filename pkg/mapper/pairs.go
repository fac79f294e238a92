package mapper

import "sort"

// Pair is one key/value of an ordered mass assignment. Keys that are not
// strings are skipped by Set.
type Pair struct {
	Key   any
	Value any
}

func KV(key, value any) Pair {
	return Pair{Key: key, Value: value}
}

// FromMap orders the contents of m by key
func FromMap(m map[string]any) []Pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: m[k]})
	}
	return pairs
}
