package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		valid    bool
	}{
		{name: "canonical", input: "2025-07", expected: "2025-07", valid: true},
		{name: "missing zero padding", input: "2025-7", valid: false},
		{name: "full date", input: "2025-07-01", valid: false},
		{name: "empty", input: "", valid: false},
		{name: "slash separator", input: "2025/07", valid: false},
		{name: "garbage", input: "not-a-period", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "RFC3339", input: "2025-07-10T08:30:00Z", valid: true},
		{name: "RFC3339 with millis", input: "2025-07-10T08:30:00.000Z", valid: true},
		{name: "datetime without zone", input: "2025-07-10 08:30:00", valid: true},
		{name: "date only", input: "2025-07-10", valid: true},
		{name: "slash date", input: "2025/07/10", valid: true},
		{name: "garbage", input: "tenth of july", valid: false},
		{name: "empty", input: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			assert.Equal(t, tt.valid, ok)
			if ok {
				assert.Equal(t, 2025, got.Year())
				assert.Equal(t, 7, int(got.Month()))
			}
		})
	}
}

func TestFromDate(t *testing.T) {
	assert.Equal(t, "2025-07", FromDate("2025-07-10"))
	assert.Equal(t, "2025-12", FromDate("2025-12-31T23:59:59Z"))
	assert.Equal(t, "", FromDate("nonsense"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("2025-07", "2025-07-10"))
	assert.True(t, Contains("2025-07", "2025-07-31T12:00:00Z"))
	assert.False(t, Contains("2025-07", "2025-08-01"))
	assert.False(t, Contains("2025-07", "2024-07-10"))
	assert.False(t, Contains("bad-period", "2025-07-10"))
	assert.False(t, Contains("2025-07", "not a date"))
}
