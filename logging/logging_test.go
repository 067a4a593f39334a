package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MajorBarnulf/harsh/config"
)

func TestNewJSONWithFields(t *testing.T) {
	logger, closer, err := New(config.LogConfig{
		Level:  config.LogLevelDebug,
		Format: "json",
		Fields: map[string]interface{}{"service": "harsh"},
	})
	require.NoError(t, err)
	defer closer.Close()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("component", "storage").Debug("opened")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "opened", entry["msg"])
	assert.Equal(t, "harsh", entry["service"])
	assert.Equal(t, "storage", entry["component"])
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harsh.log")
	logger, closer, err := New(config.LogConfig{Level: config.LogLevelInfo, Format: "text", Output: path})
	require.NoError(t, err)

	logger.Info("hello there")
	logger.Debug("not written")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello there")
	assert.NotContains(t, string(data), "not written")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud"})
	assert.ErrorIs(t, err, config.ErrInvalidLogLevel)

	_, _, err = New(config.LogConfig{Level: config.LogLevelInfo, Format: "xml"})
	assert.ErrorIs(t, err, config.ErrInvalidLogFormat)
}

func TestSetLevel(t *testing.T) {
	logger := Discard()
	require.NoError(t, SetLevel(logger, config.LogLevelWarn))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.Error(t, SetLevel(logger, "chatty"))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}
