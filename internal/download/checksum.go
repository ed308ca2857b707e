package download

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Checksum is an expected digest for a completed transfer. The algorithm is
// inferred from the hex digest length.
type Checksum struct {
	Algorithm string
	Value     string
}

// ParseChecksum validates a hex digest and infers its algorithm:
// 32 chars is MD5, 40 is SHA1, 64 is SHA256.
func ParseChecksum(s string) (*Checksum, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, err := hex.DecodeString(s); err != nil {
		return nil, fmt.Errorf("checksum is not a hex digest: %w", err)
	}
	var algo string
	switch len(s) {
	case 32:
		algo = "md5"
	case 40:
		algo = "sha1"
	case 64:
		algo = "sha256"
	default:
		return nil, fmt.Errorf("unsupported checksum length %d (expected MD5, SHA1 or SHA256)", len(s))
	}
	return &Checksum{Algorithm: algo, Value: s}, nil
}

func (c *Checksum) newHash() hash.Hash {
	switch c.Algorithm {
	case "md5":
		return md5.New()
	case "sha1":
		return sha1.New()
	default:
		return sha256.New()
	}
}

// Matches reports whether h's digest equals the expected value.
func (c *Checksum) Matches(h hash.Hash) bool {
	return hex.EncodeToString(h.Sum(nil)) == c.Value
}

// VerifyFile hashes the file at path and compares against the expected
// digest. Used for multi-part transfers, where concurrent writers do not
// produce an ordered stream to hash incrementally.
func (c *Checksum) VerifyFile(path string) (bool, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, "", wrapKind(KindDisk, err)
	}
	defer f.Close()
	h := c.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return false, "", wrapKind(KindDisk, err)
	}
	actual := hex.EncodeToString(h.Sum(nil))
	return actual == c.Value, actual, nil
}
