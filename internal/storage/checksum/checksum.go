// Package checksum provides content hashing for provider snapshots and the
// committed-hash index used for dirty tracking.
//
// Two hash strengths are available: sha256 (the safe default) and murmur3
// (a cheap non-cryptographic variant for hosts that save very frequently).
// The choice is one configuration knob; a data directory always uses a
// single strength.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Kind selects the hash strength.
type Kind string

const (
	KindSHA256  Kind = "sha256"
	KindMurmur3 Kind = "murmur3"
)

// ErrUnknownKind is returned for an unrecognized checksum kind.
var ErrUnknownKind = errors.New("checksum: unknown kind")

// Hasher computes a hex-encoded content hash.
type Hasher interface {
	Kind() Kind
	Sum(data []byte) string
}

// New returns the hasher for the given kind.
func New(kind Kind) (Hasher, error) {
	switch kind {
	case KindSHA256, "":
		return sha256Hasher{}, nil
	case KindMurmur3:
		return murmur3Hasher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

type sha256Hasher struct{}

func (sha256Hasher) Kind() Kind { return KindSHA256 }

func (sha256Hasher) Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type murmur3Hasher struct{}

func (murmur3Hasher) Kind() Kind { return KindMurmur3 }

func (murmur3Hasher) Sum(data []byte) string {
	return fmt.Sprintf("%016x", murmur3.Sum64(data))
}
