package policy

import (
	"github.com/Sh00ty/host-orchestrator/internal/flags"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type FeatureFlagSource interface {
	BoolFlag(flag flags.Flag, app models.ApplicationID) bool
	Zone() flags.Zone
}
