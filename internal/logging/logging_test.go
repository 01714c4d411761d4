package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTagsOutputWithComponentName(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	logger := For("DECODER")
	logger.Info().Msg("probing format")

	assert.Contains(t, buf.String(), "[DECODER]")
	assert.Contains(t, buf.String(), "probing format")
}

func TestDebugMessagesSuppressedUnlessEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetDebug(false)
	defer SetOutput(os.Stderr)
	defer SetDebug(false)

	For("ENGINE").Debug().Msg("should not appear")
	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestDebugMessagesEmittedWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetDebug(true)
	defer SetOutput(os.Stderr)
	defer SetDebug(false)

	For("ENGINE").Debug().Msg("verbose detail")
	assert.Contains(t, buf.String(), "verbose detail")
}
