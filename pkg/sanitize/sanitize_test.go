package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogStringFlattensNewlines(t *testing.T) {
	got := LogString("Mozilla/5.0\r\nFAKE_EVENT ip=1.2.3.4")
	assert.Equal(t, "Mozilla/5.0  FAKE_EVENT ip=1.2.3.4", got)
	assert.NotContains(t, got, "\n")
	assert.NotContains(t, got, "\r")
}

func TestLogStringCapsLength(t *testing.T) {
	got := LogString(strings.Repeat("a", 2048))
	assert.Len(t, got, maxLogFieldLen)
}

func TestLogStringPassesCleanInput(t *testing.T) {
	assert.Equal(t, "GET /api/v1/rides/request", LogString("GET /api/v1/rides/request"))
}
