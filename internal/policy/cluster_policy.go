package policy

import (
	"fmt"

	"github.com/Sh00ty/host-orchestrator/internal/application"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

// ClusterPolicy decides whether the services of one cluster inside a node
// group may go down. It never mutates anything.
type ClusterPolicy struct {
	flags FeatureFlagSource
}

func NewClusterPolicy(flags FeatureFlagSource) *ClusterPolicy {
	return &ClusterPolicy{flags: flags}
}

func (p *ClusterPolicy) ConcurrentSuspensionLimit(cluster *application.ClusterAPI) models.ConcurrentSuspensionLimit {
	return suspensionLimit(cluster.Kind(), p.flags.Zone())
}

func (p *ClusterPolicy) VerifyGroupGoingDownIsFine(cluster *application.ClusterAPI) (models.SuspensionReasons, error) {
	return p.verifyGroupGoingDown(cluster, false)
}

// VerifyGroupGoingDownPermanentlyIsFine never grants only because the
// whole cluster is down already.
func (p *ClusterPolicy) VerifyGroupGoingDownPermanentlyIsFine(cluster *application.ClusterAPI) (models.SuspensionReasons, error) {
	return p.verifyGroupGoingDown(cluster, true)
}

func (p *ClusterPolicy) verifyGroupGoingDown(
	cluster *application.ClusterAPI,
	permanent bool,
) (models.SuspensionReasons, error) {
	// The group size is not checked here, groups are assumed to be small
	// compared to their clusters.
	if cluster.NoServicesOutsideGroupIsDown() {
		return models.NewSuspensionReasons(), nil
	}

	limit := p.ConcurrentSuspensionLimit(cluster)
	percentageIfGranted := cluster.PercentageOfServicesDownIfGroupIsAllowedToBeDown()
	if percentageIfGranted <= limit.Percentage() {
		return models.NewSuspensionReasons(), nil
	}

	if !permanent && cluster.AllServicesDown() {
		return cluster.ReasonsForNoServicesUp(), nil
	}

	return models.NewSuspensionReasons(), models.NewHostStateChangeDenied(
		cluster.NodeGroup(),
		models.ConstraintEnoughServicesUp,
		fmt.Sprintf(
			"suspension of %s would increase the share of services down from %d%% to %d%%, over the limit of %d%%, %s",
			cluster,
			cluster.PercentageOfServicesDown(),
			percentageIfGranted,
			limit.Percentage(),
			cluster.DownDescription(),
		),
	)
}
