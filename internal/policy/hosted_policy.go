package policy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sh00ty/host-orchestrator/internal/application"
	"github.com/Sh00ty/host-orchestrator/internal/flags"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

// HostedPolicy sequences cluster checks, cluster controller calls and host
// status writes. The caller holds the application lock for the whole call.
// Nothing is rolled back on failure, every step is safe to repeat.
type HostedPolicy struct {
	clusterPolicy *ClusterPolicy
	flags         FeatureFlagSource
	logger        zerolog.Logger
}

func NewHostedPolicy(clusterPolicy *ClusterPolicy, flags FeatureFlagSource, logger zerolog.Logger) *HostedPolicy {
	return &HostedPolicy{
		clusterPolicy: clusterPolicy,
		flags:         flags,
		logger:        logger.With().Str("component", "policy").Logger(),
	}
}

func (p *HostedPolicy) GrantSuspensionRequest(
	ctx context.Context,
	oc models.OrchestratorContext,
	app *application.ApplicationAPI,
) (models.SuspensionReasons, error) {
	reasons := models.NewSuspensionReasons()
	if len(app.NodesInGroupWithStatus(models.NoRemarks)) == 0 {
		return reasons, nil
	}

	for _, cluster := range app.Clusters() {
		clusterReasons, err := p.clusterPolicy.VerifyGroupGoingDownIsFine(cluster)
		if err != nil {
			return models.NewSuspensionReasons(), err
		}
		reasons.MergeWith(clusterReasons)
	}

	for _, node := range app.NoRemarksStorageNodesInGroupInClusterOrder() {
		err := node.SetStorageNodeState(ctx, oc, models.NodeStateMaintenance)
		if err != nil {
			return models.NewSuspensionReasons(), err
		}
	}

	for _, host := range app.NodesInGroupWithStatus(models.NoRemarks) {
		err := app.SetHostStatus(ctx, oc, host, models.AllowedToBeDown)
		if err != nil {
			return models.NewSuspensionReasons(), err
		}
	}

	for _, line := range reasons.LogLines() {
		p.logger.Info().Msgf("suspension of %s granted in %s: %s", app.NodeGroup(), app.ApplicationID(), line)
	}
	return reasons, nil
}

func (p *HostedPolicy) ReleaseSuspensionGrant(
	ctx context.Context,
	oc models.OrchestratorContext,
	app *application.ApplicationAPI,
) error {
	for _, node := range app.SuspendedStorageNodesInGroupInReverseClusterOrder() {
		err := node.SetStorageNodeState(ctx, oc, models.NodeStateUp)
		if err != nil {
			return err
		}
	}

	for _, host := range app.NodesInGroupWithStatus(models.AllowedToBeDown) {
		err := app.SetHostStatus(ctx, oc, host, models.NoRemarks)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *HostedPolicy) AcquirePermissionToRemove(
	ctx context.Context,
	oc models.OrchestratorContext,
	app *application.ApplicationAPI,
) error {
	if app.ApplicationStatus() == models.ApplicationAllowedToBeDown {
		return models.NewHostStateChangeDenied(
			app.NodeGroup(),
			models.ConstraintApplicationSuspended,
			fmt.Sprintf(
				"unable to test availability constraints as the application %s is allowed to be down",
				app.ApplicationID(),
			),
		)
	}

	for _, cluster := range app.Clusters() {
		_, err := p.clusterPolicy.VerifyGroupGoingDownPermanentlyIsFine(cluster)
		if err != nil {
			return err
		}
	}

	force := p.flags.BoolFlag(flags.ForceDistributorDownOnRemoval, app.ApplicationID())
	for _, node := range app.StorageNodesInGroupInClusterOrder() {
		if !force {
			err := node.SetStorageNodeState(ctx, oc, models.NodeStateDown)
			if err != nil {
				return err
			}
			continue
		}
		err := node.ForceStorageNodeState(ctx, oc, models.NodeStateDown)
		if err != nil {
			return err
		}
		err = node.ForceDistributorState(ctx, oc, models.NodeStateDown)
		if err != nil {
			return err
		}
	}

	notRemoved := app.NodesInGroupWith(func(status models.HostStatus) bool {
		return status != models.PermanentlyDown
	})
	for _, host := range notRemoved {
		err := app.SetHostStatus(ctx, oc, host, models.PermanentlyDown)
		if err != nil {
			return err
		}
	}
	p.logger.Info().Msgf("permission to remove %s from %s granted", app.NodeGroup(), app.ApplicationID())
	return nil
}
