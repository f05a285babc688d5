// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	t.Setenv("DSNS_TEST_STRING", "from-env")
	t.Setenv("DSNS_TEST_STRING_EMPTY", "")

	assert.Equal(t, "from-env", ParseString("DSNS_TEST_STRING", "default"))
	assert.Equal(t, "default", ParseString("DSNS_TEST_STRING_EMPTY", "default"))
	assert.Equal(t, "default", ParseString("DSNS_TEST_STRING_UNSET", "default"))
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "42", 42},
		{"negative", "-3", -3},
		{"invalid falls back", "forty", 7},
		{"empty falls back", "", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DSNS_TEST_INT", tt.value)
			assert.Equal(t, tt.want, ParseInt("DSNS_TEST_INT", 7))
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "5s", 5 * time.Second},
		{"compound", "1m30s", 90 * time.Second},
		{"bare number is invalid", "30", time.Minute},
		{"garbage", "soon", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DSNS_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, ParseDuration("DSNS_TEST_DURATION", time.Minute))
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DSNS_TEST_BOOL", tt.value)
			assert.Equal(t, tt.want, ParseBool("DSNS_TEST_BOOL", tt.def))
		})
	}
}

func TestParseFloat(t *testing.T) {
	t.Setenv("DSNS_TEST_FLOAT", "0.25")
	assert.InDelta(t, 0.25, ParseFloat("DSNS_TEST_FLOAT", 1), 1e-9)

	t.Setenv("DSNS_TEST_FLOAT", "quarter")
	assert.InDelta(t, 1.0, ParseFloat("DSNS_TEST_FLOAT", 1), 1e-9)
}

func TestParseList(t *testing.T) {
	t.Setenv("DSNS_TEST_LIST", " --no-playlist, ,--geo-bypass ")
	assert.Equal(t, []string{"--no-playlist", "--geo-bypass"}, ParseList("DSNS_TEST_LIST", nil))

	assert.Equal(t, []string{"a"}, ParseList("DSNS_TEST_LIST_UNSET", []string{"a"}))
}

func TestSensitiveKeys(t *testing.T) {
	assert.True(t, sensitive("DSNS_CACHE_REDIS_PASSWORD"))
	assert.True(t, sensitive("DSNS_API_TOKEN"))
	assert.False(t, sensitive("DSNS_CACHE_REDIS_ADDR"))
}
