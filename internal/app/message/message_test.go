package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationKey_IsSymmetric(t *testing.T) {
	req := require.New(t)

	req.Equal(ConversationKey("u1", "u2"), ConversationKey("u2", "u1"))
	req.NotEqual(ConversationKey("u1", "u2"), ConversationKey("u1", "u3"))
}

func TestIsBlank(t *testing.T) {
	req := require.New(t)

	req.True(IsBlank(""))
	req.True(IsBlank(" \t\n"))
	req.False(IsBlank(" hi "))
}

func TestInvolves(t *testing.T) {
	req := require.New(t)

	m := Message{SenderID: "u1", ReceiverID: "u2"}
	req.True(m.Involves("u1", "u2"))
	req.True(m.Involves("u2", "u1"))
	req.False(m.Involves("u1", "u3"))
}
