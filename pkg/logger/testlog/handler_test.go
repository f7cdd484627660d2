package testlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerDeterministicOutput(t *testing.T) {
	log, h := NewLogger(WithIgnoreDebug())

	log.Info("starting")
	log.Debug("ignored")
	log.With("component", "retry").Warn("attempt failed", "attempt", 1, "error", errors.New("boom"))

	assert.Equal(t, []string{
		"[0] INFO: starting",
		"[1] WARN: attempt failed component=retry, attempt=1, error=boom",
	}, h.Lines())
}

func TestHandlerSharesIndexAcrossDerivedHandlers(t *testing.T) {
	log, h := NewLogger()

	log.With("a", 1).Error("first")
	log.Error("second")

	assert.Equal(t, []string{
		"[0] ERROR: first a=1",
		"[1] ERROR: second",
	}, h.Lines())
}
