// Package testlog routes the global logger through the test profile.
package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"pixelpipe/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
