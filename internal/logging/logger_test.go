package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "")
	require.Error(t, err)
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	log, err := New("info", path)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("profile saved")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.Contains(out, `"msg":"profile saved"`), out)
	assert.False(t, strings.Contains(out, "hidden"), "debug must be filtered at info level")
}
