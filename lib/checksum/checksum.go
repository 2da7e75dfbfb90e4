// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Kind identifies the digest algorithm a [Checksum] was computed
// with. The zero value is not a valid kind.
type Kind string

const (
	// KindSHA1 is the 20-byte SHA-1 digest. This is the kind
	// inherited by working copies seeded from a legacy store.
	KindSHA1 Kind = "sha1"

	// KindBLAKE3 is the 32-byte BLAKE3 digest, the default for
	// newly installed pristine content.
	KindBLAKE3 Kind = "blake3"
)

// size returns the expected digest length in bytes for kind, or 0 if
// kind is not recognized.
func (kind Kind) size() int {
	switch kind {
	case KindSHA1:
		return sha1.Size
	case KindBLAKE3:
		return 32
	default:
		return 0
	}
}

// newHash returns a streaming hash.Hash for kind.
func (kind Kind) newHash() (hash.Hash, error) {
	switch kind {
	case KindSHA1:
		return sha1.New(), nil
	case KindBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("checksum: unsupported digest kind %q", kind)
	}
}

// Checksum is a content digest tagged with the algorithm that
// produced it. The zero value is not a valid checksum.
type Checksum struct {
	Kind   Kind
	Digest []byte
}

// String returns the canonical "{kind}:{hex}" text form, e.g.
// "sha1:da39a3ee5e6b4b0d3255bfef95601890afd80709".
func (c Checksum) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, hex.EncodeToString(c.Digest))
}

// MarshalText implements encoding.TextMarshaler so Checksum values
// serialize as plain text through lib/codec's CBOR mode and through
// JSON alike.
func (c Checksum) MarshalText() ([]byte, error) {
	if c.Kind == "" {
		return nil, fmt.Errorf("checksum: cannot marshal zero-value checksum")
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Checksum) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsZero reports whether c is the unset zero value.
func (c Checksum) IsZero() bool {
	return c.Kind == "" && len(c.Digest) == 0
}

// Parse parses a "{kind}:{hex}" string into a Checksum. Returns an
// error wrapping [ErrUnsupportedKind] if kind is not recognized, or
// wrapping [ErrMalformed] if the hex portion does not decode to the
// expected digest length for that kind.
func Parse(text string) (Checksum, error) {
	kindText, hexText, ok := strings.Cut(text, ":")
	if !ok {
		return Checksum{}, fmt.Errorf("checksum: %q: %w", text, ErrMalformed)
	}

	kind := Kind(kindText)
	size := kind.size()
	if size == 0 {
		return Checksum{}, fmt.Errorf("checksum: %q: %w", kindText, ErrUnsupportedKind)
	}

	digest, err := hex.DecodeString(hexText)
	if err != nil {
		return Checksum{}, fmt.Errorf("checksum: %q: %w: %v", text, ErrMalformed, err)
	}
	if len(digest) != size {
		return Checksum{}, fmt.Errorf("checksum: %q: %w: digest is %d bytes, want %d",
			text, ErrMalformed, len(digest), size)
	}

	return Checksum{Kind: kind, Digest: digest}, nil
}

// HashBytes computes the digest of data using kind.
func HashBytes(kind Kind, data []byte) (Checksum, error) {
	hasher, err := kind.newHash()
	if err != nil {
		return Checksum{}, err
	}
	hasher.Write(data)
	return Checksum{Kind: kind, Digest: hasher.Sum(nil)}, nil
}

// HashFile streams the file at path through kind's hash function,
// keeping memory usage constant regardless of file size.
func HashFile(kind Kind, path string) (Checksum, error) {
	hasher, err := kind.newHash()
	if err != nil {
		return Checksum{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return Checksum{}, fmt.Errorf("checksum: opening %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(hasher, file); err != nil {
		return Checksum{}, fmt.Errorf("checksum: hashing %s: %w", path, err)
	}

	return Checksum{Kind: kind, Digest: hasher.Sum(nil)}, nil
}

// HashReader streams r through kind's hash function, returning both
// the digest and the total byte count read -- useful when the caller
// needs the plaintext size alongside the checksum (the pristine store
// records both).
func HashReader(kind Kind, r io.Reader) (Checksum, int64, error) {
	hasher, err := kind.newHash()
	if err != nil {
		return Checksum{}, 0, err
	}

	n, err := io.Copy(hasher, r)
	if err != nil {
		return Checksum{}, 0, fmt.Errorf("checksum: hashing stream: %w", err)
	}

	return Checksum{Kind: kind, Digest: hasher.Sum(nil)}, n, nil
}
