package metrics

import (
	"errors"
	"time"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
	OutcomeFailed  = "failed"
)

// Outcome classifies the result of one orchestrator operation.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeGranted
	case models.IsDenied(err), errors.Is(err, models.ErrHostNotFound):
		return OutcomeDenied
	}
	return OutcomeFailed
}

// ObserveDecision reports orchestrator.<op>.<outcome> and orchestrator.<op>.duration.
func ObserveDecision(m Metrics, operation string, started time.Time, err error) {
	m.Increment("orchestrator." + operation + "." + Outcome(err))
	m.Duration("orchestrator."+operation+".duration", time.Since(started))
}
