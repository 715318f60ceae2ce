package logrus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/raykavin/dexwatch/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestAdapter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(logger.InfoLevel, "2006-01-02", true, &buf)

	log.WithField("pair", "0xabc").WithError(errors.New("boom")).Warn("skipped")
	log.Debug("hidden")

	out := buf.String()
	require.Contains(t, out, `"pair":"0xabc"`)
	require.Contains(t, out, `"error":"boom"`)
	require.Contains(t, out, `"msg":"skipped"`)
	require.NotContains(t, out, "hidden")
	require.Equal(t, logger.InfoLevel, log.GetLevel())
}
