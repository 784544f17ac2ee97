package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Text(t *testing.T) {
	for s := StateUninitialized; s <= StateFaulted; s++ {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var back State
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, s, back)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("dreaming")))
	assert.Equal(t, "unknown", State(42).String())
}
