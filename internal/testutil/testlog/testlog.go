package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/uom-assistant/uoma-plugin-sdk/internal/logging"
)

// Start applies the test logging profile and marks the test in the output.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("testlog: start")
}
