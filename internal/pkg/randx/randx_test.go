package randx

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderID(t *testing.T) {
	req := require.New(t)

	seen := make(map[string]struct{})
	for range 200 {
		id := PlaceholderID()
		req.True(IsPlaceholderID(id), id)
		for _, c := range strings.TrimPrefix(id, PlaceholderPrefix) {
			req.Contains(Base62Chars, string(c))
		}
		seen[id] = struct{}{}
	}
	req.Len(seen, 200)

	req.False(IsPlaceholderID(uuid.NewString()))
	req.False(IsPlaceholderID("local_short"))
}

func TestConnectionID(t *testing.T) {
	req := require.New(t)

	_, err := uuid.Parse(ConnectionID())
	req.NoError(err)
	req.NotEqual(ConnectionID(), ConnectionID())
}
