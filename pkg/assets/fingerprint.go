package assets

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 digest.
type Fingerprint [32]byte

// ShortLen is the number of hex characters of a fingerprint used in
// hashed file names.
const ShortLen = 16

// String returns the full hex digest.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Short returns the first ShortLen hex characters.
func (f Fingerprint) Short() string { return f.String()[:ShortLen] }

// IsZero reports whether f is unset.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// ParseFingerprint decodes a full hex digest.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	if len(b) != len(f) {
		return f, fmt.Errorf("invalid fingerprint %q: want %d bytes, got %d", s, len(f), len(b))
	}
	copy(f[:], b)
	return f, nil
}

// fingerprintKey separates asset fingerprints from any other BLAKE3 use
// of the same bytes. ASCII, zero padded to 32 bytes.
var fingerprintKey = [32]byte{
	'p', 'a', 'c', 'k', 'l', 'e', 'r', '.', 'a', 's', 's', 'e', 't', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0,
}

// DepFingerprint is the logical name and fingerprint of one dependency.
type DepFingerprint struct {
	Name        string
	Fingerprint Fingerprint
}

// ComputeFingerprint hashes content together with the fingerprints of
// the direct dependencies, sorted by logical name. Each field is length
// prefixed so distinct inputs never share an encoding. Since dependency
// fingerprints close over their own dependencies, the result reflects
// every transitive change.
func ComputeFingerprint(content []byte, deps []DepFingerprint) Fingerprint {
	return ComputePrefixedFingerprint(content, deps, "")
}

// ComputePrefixedFingerprint is ComputeFingerprint for an asset whose
// rewritten references carry publicPrefix. The prefix is part of the
// rewritten bytes, so it is part of the digest whenever there are
// dependencies to rewrite. With an empty prefix or no dependencies the
// result equals ComputeFingerprint.
func ComputePrefixedFingerprint(content []byte, deps []DepFingerprint, publicPrefix string) Fingerprint {
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed only fails for a key that is not 32 bytes.
		panic(err)
	}

	writeField := func(data []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(data)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(data)
	}

	writeField(content)

	sorted := slices.Clone(deps)
	slices.SortFunc(sorted, func(a, b DepFingerprint) int { return strings.Compare(a.Name, b.Name) })
	for _, d := range sorted {
		writeField([]byte(d.Name))
		writeField(d.Fingerprint[:])
	}
	// Dependencies add fields in pairs; the single trailing prefix field
	// keeps the encoding unambiguous.
	if publicPrefix != "" && len(deps) > 0 {
		writeField([]byte(publicPrefix))
	}

	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// HashedPath inserts the short fingerprint before the extension of a
// logical name: "images/logo.png" becomes "images/logo.<h16>.png".
func HashedPath(name string, f Fingerprint) string {
	dir, file := path.Split(name)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if stem == "" {
		// dotfile such as ".htaccess"
		stem, ext = file, ""
	}
	return dir + stem + "." + f.Short() + ext
}
