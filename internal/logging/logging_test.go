package logging_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/crm-session-broker/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	t.Run("json outside DEV", func(t *testing.T) {
		var buf bytes.Buffer
		logging.SetupWriter(&buf, "PROD", "warn")
		log.Info().Msg("dropped")
		log.Warn().Str("kind", "identity").Msg("kept")

		require.NotContains(t, buf.String(), "dropped")
		require.Contains(t, buf.String(), `"kind":"identity"`)
		require.Contains(t, buf.String(), `"message":"kept"`)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logging.SetupWriter(&buf, "PROD", "chatty")
		log.Debug().Msg("debug line")
		log.Info().Msg("info line")

		require.NotContains(t, buf.String(), "debug line")
		require.Contains(t, buf.String(), "info line")
	})
}
