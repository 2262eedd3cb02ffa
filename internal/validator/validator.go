// Package validator provides CloudEvents validation.
package validator

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ event.Validator = (*CloudEventsValidator)(nil)

var knownLevels = []string{event.LevelDebug, event.LevelInfo, event.LevelWarn, event.LevelError}

// Option configures a CloudEventsValidator.
type Option func(*CloudEventsValidator)

// WithLogPayload additionally requires the data to be a log record with a
// known level and a message.
func WithLogPayload() Option {
	return func(v *CloudEventsValidator) { v.logPayload = true }
}

// CloudEventsValidator validates CloudEvents 1.0 envelopes.
type CloudEventsValidator struct {
	logPayload bool
}

// NewCloudEventsValidator creates a new CloudEvents validator.
func NewCloudEventsValidator(opts ...Option) *CloudEventsValidator {
	v := &CloudEventsValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate validates a CloudEvent. Spec version 0.1 is normalized to 1.0
// in place. Failures are *errors.ValidationError.
func (v *CloudEventsValidator) Validate(e *event.CloudEvent) error {
	if e == nil {
		return &errors.ValidationError{Field: "event", Reason: "event is nil"}
	}

	required := []struct {
		field string
		value string
	}{
		{"id", e.ID},
		{"source", e.Source},
		{"specversion", e.SpecVersion},
		{"type", e.Type},
	}
	for _, r := range required {
		if r.value == "" {
			return &errors.ValidationError{EventID: e.ID, Field: r.field, Reason: "required field is missing"}
		}
	}

	if e.SpecVersion == "0.1" {
		e.SpecVersion = "1.0"
	}
	if e.SpecVersion != "1.0" {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "specversion",
			Reason:  fmt.Sprintf("unsupported version: %s (supported: 1.0)", e.SpecVersion),
		}
	}

	if isJSON(e.DataContentType) && len(e.Data) > 0 && !json.Valid(e.Data) {
		return &errors.ValidationError{EventID: e.ID, Field: "data", Reason: "data is not valid JSON"}
	}

	if v.logPayload {
		return validateLogRecord(e)
	}
	return nil
}

func isJSON(contentType *string) bool {
	if contentType == nil {
		return true
	}
	mediaType, _, _ := strings.Cut(*contentType, ";")
	mediaType = strings.TrimSpace(mediaType)
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func validateLogRecord(e *event.CloudEvent) error {
	if len(e.Data) == 0 {
		return &errors.ValidationError{EventID: e.ID, Field: "data", Reason: "log record payload is missing"}
	}

	var record event.LogRecordData
	if err := json.Unmarshal(e.Data, &record); err != nil {
		return &errors.ValidationError{EventID: e.ID, Field: "data", Reason: "payload is not a log record"}
	}
	if !slices.Contains(knownLevels, strings.ToUpper(record.Level)) {
		return &errors.ValidationError{
			EventID: e.ID,
			Field:   "data.level",
			Reason:  fmt.Sprintf("unknown log level %q", record.Level),
		}
	}
	if record.Message == "" {
		return &errors.ValidationError{EventID: e.ID, Field: "data.message", Reason: "required field is missing"}
	}
	return nil
}
