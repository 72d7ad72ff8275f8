// Package testutil provides common test assertions for timing and wire
// payloads.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertDurationWithin asserts that a duration is within a tolerance of an expected value
func AssertDurationWithin(t *testing.T, expected, actual, tolerance time.Duration, msgAndArgs ...interface{}) {
	t.Helper()

	diff := expected - actual
	if diff < 0 {
		diff = -diff
	}

	assert.LessOrEqual(t, diff, tolerance, msgAndArgs...)
}

// AssertMinSpacing asserts that consecutive stamps are at least
// period-tolerance apart.
func AssertMinSpacing(t *testing.T, stamps []time.Time, period, tolerance time.Duration) {
	t.Helper()

	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), period-tolerance,
			"gap before stamp %d", i)
	}
}
