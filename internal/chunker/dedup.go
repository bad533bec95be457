package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the hex-encoded SHA-256 digest of the trimmed chunk text.
// Identical trimmed text always produces an identical digest.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Dedup filters duplicate chunks within a single build run. The seen set is
// not persisted: a fresh build re-admits previously indexed content. Not safe
// for concurrent use; a build has a single writer.
type Dedup struct {
	seen map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// IsDuplicate reports whether the chunk's content hash has been seen in this
// run. The first occurrence is recorded and admitted; every later occurrence
// of the same trimmed text is a duplicate.
func (d *Dedup) IsDuplicate(text string) bool {
	h := Hash(text)
	if _, ok := d.seen[h]; ok {
		return true
	}
	d.seen[h] = struct{}{}
	return false
}

// Len returns the number of distinct chunks admitted so far.
func (d *Dedup) Len() int { return len(d.seen) }
