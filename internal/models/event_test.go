package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventJSONAddressFieldsAlwaysSerialize(t *testing.T) {
	event := NewEvent(EventDispatcherSet, 7)

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	body := string(raw)
	require.Contains(t, body, `"dispatcher":"`+ZeroAddress.String()+`"`, "zero addresses render explicitly")
	require.NotContains(t, body, "image_uri", "empty strings stay omitted")

	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, event.ID, back.ID)
	require.True(t, back.Dispatcher.IsZero())
}
