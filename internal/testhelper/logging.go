// Package testhelper configures logging for tests. Import it for its side effect.
package testhelper

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// init disables logging under go test unless FORMULARY_TEST_LOG is set
func init() {
	if testing.Testing() && os.Getenv("FORMULARY_TEST_LOG") == "" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
}

// CaptureLogs routes the global logger into a buffer for the rest of the test, as JSON lines
// at warn level and above.
func CaptureLogs(t testing.TB) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(buf).Level(zerolog.WarnLevel)
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
	return buf
}
