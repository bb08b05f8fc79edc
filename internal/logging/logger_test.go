package logging_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datenlord/datenlord_sdk_go/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"INFO":    zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.WarnLevel,
	}
	for in, want := range cases {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewJSONWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: zerolog.InfoLevel, Format: "json", Output: &buf})

	log.Debug().Msg("hidden")
	log.Info().Str("path", "/a").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"path":"/a"`)
	assert.Contains(t, out, `"message":"visible"`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	base := logging.New(logging.Config{Level: zerolog.InfoLevel, Format: "json", Output: &buf})

	ctx := logging.WithComponent(logging.WithContext(context.Background(), base), "localfs")
	logging.FromContext(ctx).Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"localfs"`)
}
