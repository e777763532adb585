package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"tokensession/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateEndpoint checks that value is an absolute http(s) URL.
func ValidateEndpoint(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Field: field, Value: value, Message: "is required"}
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{Field: field, Value: value, Message: "must be an absolute http or https URL"}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// Validate checks the configuration and returns every problem found.
func (c TokenSessionConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := ValidateEndpoint("endpoint", c.Endpoint); err != nil {
		errs = append(errs, err.(ValidationError))
	}

	durations := []struct {
		field    string
		value    time.Duration
		positive bool
	}{
		{"refreshLead", c.RefreshLead, false},
		{"hardExpiryMargin", c.HardExpiryMargin, false},
		{"retryDelay", c.RetryDelay, true},
		{"onDemandRefreshInterval", c.OnDemandRefreshInterval, false},
		{"defaultTokenLifetime", c.DefaultTokenLifetime, true},
		{"httpTimeout", c.HTTPTimeout, true},
	}
	for _, d := range durations {
		if d.value < 0 || (d.positive && d.value == 0) {
			qualifier := "must not be negative"
			if d.positive {
				qualifier = "must be positive"
			}
			errs.Add(d.field, qualifier, d.value)
		}
	}

	if err := ValidateOneOf("store.type", string(c.Store.Type), []string{
		string(StoreTypeFile), string(StoreTypeSQLite), string(StoreTypeMemory),
	}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.Store.Type != StoreTypeMemory && c.Store.Path == "" {
		errs.Add("store.path", "is required for persistent stores")
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", err.Error(), c.LogLevel)
	}

	return errs
}
