package zerolog

import (
	"bytes"
	"testing"

	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: logger.InfoLevel, JSON: true, Output: &buf})

	log.WithFields(map[string]any{"task": "discovery"}).Info("sweep finished")
	log.Debug("hidden")

	require.Contains(t, buf.String(), `"task":"discovery"`)
	require.Contains(t, buf.String(), `"message":"sweep finished"`)
	require.NotContains(t, buf.String(), "hidden")
	require.Equal(t, logger.InfoLevel, log.GetLevel())
}

func TestLevelConversion(t *testing.T) {
	for _, level := range []logger.Level{logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel} {
		require.Equal(t, level, toLevel(toZerologLevel(level)))
	}
}
