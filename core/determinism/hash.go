// Package determinism provides content hashing for values that must
// compare equal across processes and reloads.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"

	"github.com/shopspring/decimal"
)

// ContentHash is a SHA-256 hash for content integrity
type ContentHash [32]byte

// ComputeHash computes a content hash from bytes
func ComputeHash(data []byte) ContentHash {
	return sha256.Sum256(data)
}

// Hex returns the hash as a hex string
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 16 hex digits
func (h ContentHash) Short() string {
	return h.Hex()[:16]
}

// String implements Stringer
func (h ContentHash) String() string {
	return h.Short() + "..."
}

// Hasher accumulates a canonical encoding of its inputs.
// Numbers are written in shortest decimal form, so 1.50 and 1.5 hash alike.
type Hasher struct {
	h hash.Hash
}

// NewHasher creates a hasher scoped to namespace
func NewHasher(namespace string) *Hasher {
	hs := &Hasher{h: sha256.New()}
	hs.String(namespace)
	return hs
}

// String writes a separated string part
func (hs *Hasher) String(s string) *Hasher {
	hs.h.Write([]byte(s))
	hs.h.Write([]byte{0}) // Separator
	return hs
}

// Float writes a number part
func (hs *Hasher) Float(v float64) *Hasher {
	return hs.String(decimal.NewFromFloat(v).String())
}

// Floats writes a length-prefixed run of numbers
func (hs *Hasher) Floats(vs []float64) *Hasher {
	hs.Float(float64(len(vs)))
	for _, v := range vs {
		hs.Float(v)
	}
	return hs
}

// FloatMap writes m in sorted key order
func (hs *Hasher) FloatMap(m map[string]float64) *Hasher {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hs.Float(float64(len(keys)))
	for _, k := range keys {
		hs.String(k).Float(m[k])
	}
	return hs
}

// Sum returns the hash of everything written
func (hs *Hasher) Sum() ContentHash {
	var out ContentHash
	copy(out[:], hs.h.Sum(nil))
	return out
}
