package flags

import (
	"slices"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type Flag string

const (
	// ForceDistributorDownOnRemoval also forces the distributor of a removed
	// storage node down, without asking the cluster controller for consent.
	ForceDistributorDownOnRemoval Flag = "force-distributor-down-on-removal"
)

const allApplications = "*"

type Zone struct {
	System      string
	Environment string
	// CD marks continuous deployment systems, they tolerate more hosts down.
	CD bool
}

type Config struct {
	System      string `envconfig:"ZONE_SYSTEM,default=main"`
	Environment string `envconfig:"ZONE_ENVIRONMENT,default=prod"`
	CD          bool   `envconfig:"ZONE_CD,default=false"`

	// application ids with the flag on, "*" turns it on everywhere
	ForceDistributorDownOnRemoval []string `envconfig:"FLAG_FORCE_DISTRIBUTOR_DOWN_ON_REMOVAL,optional"`
}

// Static serves flags read once from the environment.
type Static struct {
	zone  Zone
	flags map[Flag][]string
}

func NewStatic(cfg Config) *Static {
	return &Static{
		zone: Zone{
			System:      cfg.System,
			Environment: cfg.Environment,
			CD:          cfg.CD,
		},
		flags: map[Flag][]string{
			ForceDistributorDownOnRemoval: cfg.ForceDistributorDownOnRemoval,
		},
	}
}

func (s *Static) BoolFlag(flag Flag, app models.ApplicationID) bool {
	apps := s.flags[flag]
	return slices.Contains(apps, allApplications) || slices.Contains(apps, string(app))
}

func (s *Static) Zone() Zone {
	return s.zone
}
