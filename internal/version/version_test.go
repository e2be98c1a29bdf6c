package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime })

	assert.Equal(t, "dev (unknown, built unknown)", String())

	Version, GitSHA, BuildTime = "v0.3.0", "abc1234", "2026-10-01T12:00:00Z"
	assert.Equal(t, "v0.3.0 (abc1234, built 2026-10-01T12:00:00Z)", String())
}
