package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameTyping(t *testing.T) {
	ft, fields, err := ParseFrame([]byte(`{"type":"typing","isTyping":true}`))
	require.NoError(t, err)
	assert.Equal(t, FrameTyping, ft)

	tp, err := DecodePayload[TypingPayload](fields)
	require.NoError(t, err)
	assert.True(t, tp.IsTyping)
}

func TestParseFrameErrors(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"isTyping":true}`,
		"empty type":   `{"type":"","isTyping":true}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseFrame([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseFrameUnknownTypePassesThrough(t *testing.T) {
	// unknown types parse fine, dispatch decides what to do with them
	ft, _, err := ParseFrame([]byte(`{"type":"presence"}`))
	require.NoError(t, err)
	assert.Equal(t, FrameType("presence"), ft)
}

func TestBuildTypingEventWireShape(t *testing.T) {
	ev := BuildTypingEvent(42, 7, "Ada", true)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "typing_indicator", got["type"])
	assert.Equal(t, float64(42), got["chatId"])
	assert.Equal(t, true, got["isTyping"])
	user := got["user"].(map[string]any)
	assert.Equal(t, float64(7), user["id"])
	assert.Equal(t, "Ada", user["name"])
}
