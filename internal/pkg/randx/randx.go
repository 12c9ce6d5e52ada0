/*
Package randx generates identifiers: UUIDs for live connections and short Base62
placeholders for messages that only exist on the client (pushed, never fetched).
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// PlaceholderPrefix marks message ids assigned locally by a client.
	PlaceholderPrefix = "local_"

	// PlaceholderRawLength is the length of the Base62 part of a placeholder id.
	PlaceholderRawLength = 12
)

// base62 returns n cryptographically random Base62 characters.
func base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// PlaceholderID returns a client-local message id such as "local_3fZk9QaP0bXe".
// If the random source fails it falls back to a UUID-derived suffix.
func PlaceholderID() string {
	raw, err := base62(PlaceholderRawLength)
	if err != nil {
		raw = strings.ReplaceAll(uuid.NewString(), "-", "")[:PlaceholderRawLength]
	}
	return PlaceholderPrefix + raw
}

// IsPlaceholderID reports whether id was produced by PlaceholderID.
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix) && len(id) == len(PlaceholderPrefix)+PlaceholderRawLength
}

// ConnectionID returns a UUID v4 string identifying one live connection.
func ConnectionID() string {
	return uuid.New().String()
}
