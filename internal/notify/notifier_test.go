package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier_Publish(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Publish(context.Background(), "new problem report"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "notify", entries[0].LoggerName)
	assert.Equal(t, "new problem report", entries[0].ContextMap()["message"])
}
