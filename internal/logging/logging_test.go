package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfo(t *testing.T) {
	logger, err := New("", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

func TestFor_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", &buf)
	require.NoError(t, err)

	For(logger, CompProcess).Debug("spawned")

	assert.Contains(t, buf.String(), "component=process")
	assert.Contains(t, buf.String(), "msg=spawned")
}

func TestDiscard_WritesNothing(t *testing.T) {
	entry := Discard(CompPython)
	entry.Error("ignored")
	assert.Equal(t, "python", entry.Data["component"])
}
