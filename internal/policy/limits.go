package policy

import (
	"github.com/Sh00ty/host-orchestrator/internal/flags"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

func fixedLimit(limit models.ConcurrentSuspensionLimit) func(flags.Zone) models.ConcurrentSuspensionLimit {
	return func(flags.Zone) models.ConcurrentSuspensionLimit {
		return limit
	}
}

// suspensionLimits is the share of a cluster allowed to be down at once.
// Content clusters are guarded by the cluster controller instead.
var suspensionLimits = map[models.ClusterKind]func(flags.Zone) models.ConcurrentSuspensionLimit{
	models.ClusterControllerKind: fixedLimit(models.OneNode),
	models.StorageKind:           fixedLimit(models.AllNodes),
	models.ContainerKind:         fixedLimit(models.TenPercent),
	models.AdminSlobrokKind:      fixedLimit(models.OneNode),
	models.AdminKind:             fixedLimit(models.AllNodes),
	models.MetricsProxyKind:      fixedLimit(models.AllNodes),
	models.ConfigKind:            fixedLimit(models.OneNode),
	models.ConfigHostAdminKind:   fixedLimit(models.OneNode),
	models.HostAdminKind: func(zone flags.Zone) models.ConcurrentSuspensionLimit {
		if zone.CD {
			return models.FiftyPercent
		}
		return models.TwentyPercent
	},
	models.OtherKind: fixedLimit(models.TenPercent),
}

func suspensionLimit(kind models.ClusterKind, zone flags.Zone) models.ConcurrentSuspensionLimit {
	limit, ok := suspensionLimits[kind]
	if !ok {
		return models.TenPercent
	}
	return limit(zone)
}
