package bus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "cart:invalidate:user-1", Channel("user-1"))
}

func TestDecode(t *testing.T) {
	t.Run("Round-trips a fired message", func(t *testing.T) {
		original := Message{UserID: "user-1", SourceTag: "tag-a", Reason: ReasonMutation, Timestamp: now()}

		data, err := json.Marshal(original)
		require.NoError(t, err)

		msg, err := decode(data)

		require.NoError(t, err)
		assert.Equal(t, original, msg)
	})

	t.Run("Malformed payload is an error", func(t *testing.T) {
		_, err := decode([]byte("not-json"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal invalidation message")
	})

	t.Run("Unknown fields are tolerated", func(t *testing.T) {
		msg, err := decode([]byte(`{"user_id":"user-1","source_tag":"tag-b","extra":"ignored"}`))

		require.NoError(t, err)
		assert.Equal(t, "user-1", msg.UserID)
		assert.Equal(t, "tag-b", msg.SourceTag)
	})
}
