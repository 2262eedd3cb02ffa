package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/event"
)

func strPtr(s string) *string { return &s }

func validEvent() *event.CloudEvent {
	return &event.CloudEvent{
		ID:          "evt-1",
		Source:      "/services/checkout",
		SpecVersion: "1.0",
		Type:        "com.kaflogcache.log.record",
		Data:        []byte(`{"level":"INFO","service":"checkout","message":"order placed"}`),
	}
}

func TestCloudEventsValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *event.CloudEvent)
		nilEvent  bool
		wantField string
	}{
		{name: "valid", mutate: func(*event.CloudEvent) {}},
		{name: "nil event", nilEvent: true, wantField: "event"},
		{name: "missing id", mutate: func(e *event.CloudEvent) { e.ID = "" }, wantField: "id"},
		{name: "missing source", mutate: func(e *event.CloudEvent) { e.Source = "" }, wantField: "source"},
		{name: "missing specversion", mutate: func(e *event.CloudEvent) { e.SpecVersion = "" }, wantField: "specversion"},
		{name: "missing type", mutate: func(e *event.CloudEvent) { e.Type = "" }, wantField: "type"},
		{name: "unsupported version", mutate: func(e *event.CloudEvent) { e.SpecVersion = "2.0" }, wantField: "specversion"},
		{name: "invalid json data", mutate: func(e *event.CloudEvent) { e.Data = []byte(`{`) }, wantField: "data"},
		{
			name: "non json content type skips data check",
			mutate: func(e *event.CloudEvent) {
				e.DataContentType = strPtr("text/plain")
				e.Data = []byte("plain text")
			},
		},
		{
			name: "structured json content type",
			mutate: func(e *event.CloudEvent) {
				e.DataContentType = strPtr("application/cloudevents+json; charset=utf-8")
				e.Data = []byte("{")
			},
			wantField: "data",
		},
	}

	v := NewCloudEventsValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e *event.CloudEvent
			if !tt.nilEvent {
				e = validEvent()
				tt.mutate(e)
			}

			err := v.Validate(e)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var validationErr *errors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
			assert.ErrorIs(t, err, errors.ErrInvalidEvent)
		})
	}
}

func TestCloudEventsValidator_NormalizesSpecVersion(t *testing.T) {
	e := validEvent()
	e.SpecVersion = "0.1"

	require.NoError(t, NewCloudEventsValidator().Validate(e))
	assert.Equal(t, "1.0", e.SpecVersion)
}

func TestCloudEventsValidator_LogPayload(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantField string
	}{
		{name: "valid", data: `{"level":"ERROR","message":"payment declined"}`},
		{name: "lowercase level", data: `{"level":"warn","message":"slow query"}`},
		{name: "empty payload", data: ``, wantField: "data"},
		{name: "not an object", data: `[1,2]`, wantField: "data"},
		{name: "unknown level", data: `{"level":"FATAL","message":"x"}`, wantField: "data.level"},
		{name: "missing message", data: `{"level":"INFO"}`, wantField: "data.message"},
	}

	v := NewCloudEventsValidator(WithLogPayload())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			e.Data = []byte(tt.data)

			err := v.Validate(e)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var validationErr *errors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}
