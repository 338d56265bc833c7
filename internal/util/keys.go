package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ManyKey returns a deterministic key for a set of ids: prefix, a colon and
// the first 16 hex chars of the sorted members' hash. Order and duplicates
// in ids do not matter.
func ManyKey(prefix string, ids []string) string {
	return ManyKeySorted(prefix, SortedUnique(ids))
}

// ManyKeySorted is ManyKey for ids already sorted and deduplicated.
func ManyKeySorted(prefix string, sorted []string) string {
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}

// SortedUnique returns a sorted copy of ids without duplicates.
func SortedUnique(ids []string) []string {
	s := append([]string(nil), ids...)
	sort.Strings(s)
	out := s[:0]
	for i, id := range s {
		if i == 0 || id != s[i-1] {
			out = append(out, id)
		}
	}
	return out
}
