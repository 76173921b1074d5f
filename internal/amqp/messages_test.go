package amqp

import (
	"testing"
	"time"

	"finledger/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordEventMessageJSON(t *testing.T) {
	msg := NewRecordEventMessage(core.KindIncome, ActionCreated, 42)
	require.Equal(t, core.KindIncome, msg.Kind)
	require.Equal(t, ActionCreated, msg.Action)
	require.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	body, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := RecordEventMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, msg.Kind, decoded.Kind)
	assert.Equal(t, msg.Action, decoded.Action)
	assert.Equal(t, msg.ID, decoded.ID)
}

func TestRecordEventMessageFromJSONInvalid(t *testing.T) {
	_, err := RecordEventMessageFromJSON([]byte("not json"))
	assert.Error(t, err)
}
