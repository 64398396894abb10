package assistant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateText(t *testing.T) {
	for st := range stateNames {
		text, err := st.MarshalText()
		require.NoError(t, err)

		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, st, back)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("paused")))
	assert.Equal(t, "state(42)", State(42).String())
}

func TestSnapshotJSONUsesStateNames(t *testing.T) {
	data, err := json.Marshal(Snapshot{State: StateAwaitingFirstToken})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"awaiting_first_token"`)
	assert.False(t, StateIdle.InFlight())
	assert.True(t, StateComplete.InFlight())
}
