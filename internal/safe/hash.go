package safe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	trixerrors "trix/internal/errors"
)

// HashLen is the length of a hex-encoded SHA-256 digest.
const HashLen = 64

// MinPrefixLen is the shortest abbreviated hash Resolve accepts.
const MinPrefixLen = 4

// Hash identifies a stored object by the hex SHA-256 of its exact bytes.
// The zero value means "absent".
type Hash string

// HashContent returns the content hash of content.
func HashContent(content []byte) Hash {
	sum := sha256.Sum256(content)
	return Hash(hex.EncodeToString(sum[:]))
}

// ParseHash validates s as a full content hash.
func ParseHash(s string) (Hash, error) {
	h := Hash(strings.TrimSpace(s))
	if err := h.Validate(); err != nil {
		return "", err
	}
	return h, nil
}

func (h Hash) Validate() error {
	if len(h) != HashLen || !isLowerHex(string(h)) {
		return trixerrors.ValidationError(fmt.Sprintf("invalid content hash %q", string(h)))
	}
	return nil
}

func (h Hash) IsZero() bool {
	return h == ""
}

// Short returns the first eight characters, for display.
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

func (h Hash) String() string {
	return string(h)
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
