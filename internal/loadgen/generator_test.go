package loadgen

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/kaflogcache/internal/validator"
	"github.com/jittakal/kaflogcache/pkg/event"
)

func TestPickLevel(t *testing.T) {
	tests := []struct {
		roll int
		want string
	}{
		{roll: 1, want: event.LevelDebug},
		{roll: 20, want: event.LevelDebug},
		{roll: 21, want: event.LevelInfo},
		{roll: 80, want: event.LevelInfo},
		{roll: 81, want: event.LevelWarn},
		{roll: 95, want: event.LevelWarn},
		{roll: 96, want: event.LevelError},
		{roll: 100, want: event.LevelError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pickLevel(tt.roll), "roll %d", tt.roll)
	}
}

func TestLevelWeightsSumToHundred(t *testing.T) {
	total := 0
	for _, lw := range levelWeights {
		total += lw.weight
	}
	assert.Equal(t, 100, total)
}

func TestGenerator_LogEvent(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator("/tests/loadgen", []string{"payments"}, nil)
	gen.now = func() time.Time { return fixed }

	ce := gen.LogEvent()
	require.NoError(t, ce.Validate())

	assert.Equal(t, EventType, ce.Type())
	assert.Equal(t, "/tests/loadgen", ce.Source())
	assert.Equal(t, "payments", ce.Subject())
	assert.True(t, fixed.Equal(ce.Time()))

	var data event.LogRecordData
	require.NoError(t, ce.DataAs(&data))
	assert.Equal(t, "payments", data.Service)
	assert.Contains(t, data.Host, "payments-")
	assert.NotEmpty(t, data.Message)
	assert.Len(t, data.TraceID, 32)
	assert.Contains(t, []string{event.LevelDebug, event.LevelInfo, event.LevelWarn, event.LevelError}, data.Level)
}

func TestGenerator_EventsPassValidation(t *testing.T) {
	gen := NewGenerator("", nil, nil)
	v := validator.NewCloudEventsValidator(validator.WithLogPayload())

	for _, ce := range gen.Batch(20) {
		raw, err := json.Marshal(ce)
		require.NoError(t, err)

		var decoded event.CloudEvent
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.NoError(t, v.Validate(&decoded))
		assert.Equal(t, defaultSource, decoded.Source)
	}
}

func TestGenerator_UniqueIDs(t *testing.T) {
	gen := NewGenerator("", nil, nil)
	seen := make(map[string]bool)
	for _, ce := range gen.Batch(50) {
		assert.False(t, seen[ce.ID()], "duplicate id %s", ce.ID())
		seen[ce.ID()] = true
	}
}
