package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnvPrefersLoadedFile(t *testing.T) {
	withEnv(t, map[string]string{"INTAKE_TEST_KEY": "from-file"})
	t.Setenv("INTAKE_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("INTAKE_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("INTAKE_TEST_MISSING", "def"))
}

func TestGetEnvFallsBackToOS(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("INTAKE_TEST_OS", "os-value")

	assert.Equal(t, "os-value", GetEnv("INTAKE_TEST_OS", "def"))
}

func TestTypedHelpers(t *testing.T) {
	withEnv(t, map[string]string{
		"INT":      "42",
		"BAD_INT":  "forty",
		"FLOAT":    "0.75",
		"BOOL":     "true",
		"DUR":      "45s",
		"DUR_SECS": "5",
		"LIST":     "a, b,,c",
	})

	assert.Equal(t, 42, GetEnvInt("INT", 1))
	assert.Equal(t, 1, GetEnvInt("BAD_INT", 1))
	assert.Equal(t, int64(42), GetEnvInt64("INT", 0))
	assert.InDelta(t, 0.75, GetEnvFloat("FLOAT", 0), 1e-9)
	assert.True(t, GetEnvBool("BOOL", false))
	assert.False(t, GetEnvBool("MISSING_BOOL", false))
	assert.Equal(t, 45*time.Second, GetEnvDuration("DUR", time.Second))
	assert.Equal(t, 5*time.Second, GetEnvDuration("DUR_SECS", time.Second))
	assert.Equal(t, time.Minute, GetEnvDuration("MISSING_DUR", time.Minute))
	assert.Equal(t, []string{"a", "b", "c"}, GetEnvList("LIST", nil))
	assert.Equal(t, []string{"x"}, GetEnvList("MISSING_LIST", []string{"x"}))
}
