package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/host-orchestrator/internal/clustercontroller"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

const nodeStateReason = "host-orchestrator"

// StorageNode changes the cluster controller state of one storage node.
type StorageNode struct {
	host        models.HostName
	clusterID   models.ClusterID
	index       int
	controllers []models.HostName
	client      ClusterControllerClient
}

func newStorageNode(
	instance models.ServiceInstance,
	clusterID models.ClusterID,
	controllers []models.HostName,
	client ClusterControllerClient,
) (*StorageNode, error) {
	index, err := instance.Index()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage node of %s: %w", instance, err)
	}
	return &StorageNode{
		host:        instance.Host,
		clusterID:   clusterID,
		index:       index,
		controllers: controllers,
		client:      client,
	}, nil
}

func (n *StorageNode) Host() models.HostName {
	return n.host
}

func (n *StorageNode) ClusterID() models.ClusterID {
	return n.clusterID
}

func (n *StorageNode) Index() int {
	return n.index
}

func (n *StorageNode) SetStorageNodeState(
	ctx context.Context,
	oc models.OrchestratorContext,
	state models.ClusterControllerNodeState,
) error {
	return n.setState(ctx, oc, clustercontroller.NodeTypeStorage, clustercontroller.ConditionSafe, state)
}

// ForceStorageNodeState sets the storage node state without letting the
// cluster controller veto it.
func (n *StorageNode) ForceStorageNodeState(
	ctx context.Context,
	oc models.OrchestratorContext,
	state models.ClusterControllerNodeState,
) error {
	return n.setState(ctx, oc, clustercontroller.NodeTypeStorage, clustercontroller.ConditionForce, state)
}

// ForceDistributorState sets the distributor on the same node without
// letting the cluster controller veto it.
func (n *StorageNode) ForceDistributorState(
	ctx context.Context,
	oc models.OrchestratorContext,
	state models.ClusterControllerNodeState,
) error {
	return n.setState(ctx, oc, clustercontroller.NodeTypeDistributor, clustercontroller.ConditionForce, state)
}

func (n *StorageNode) setState(
	ctx context.Context,
	oc models.OrchestratorContext,
	nodeType clustercontroller.NodeType,
	condition clustercontroller.Condition,
	state models.ClusterControllerNodeState,
) error {
	log.Debug().Msgf(
		"setting %s %s/%d on %s to %s (probe=%t)",
		nodeType, n.clusterID, n.index, n.host, state, oc.Probe,
	)
	resp, err := n.client.SetNodeState(ctx, clustercontroller.SetNodeStateRequest{
		Controllers: n.controllers,
		ClusterID:   n.clusterID,
		NodeType:    nodeType,
		NodeIndex:   n.index,
		State:       state,
		Reason:      nodeStateReason,
		Condition:   condition,
		Probe:       oc.Probe,
		Timeout:     oc.Timeout(ctx.Deadline()),
	})
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return fmt.Errorf(
			"%s: cluster controller call for %s was abandoned: %w: %w",
			models.ConstraintClusterControllerAvailable, n.host, models.ErrTransient, err,
		)
	case errors.Is(err, clustercontroller.ErrRejected):
		return models.NewHostStateChangeDeniedForHost(
			n.host,
			models.ConstraintSetNodeState,
			fmt.Sprintf("failed to set %s state of %s/%d to %s: %s", nodeType, n.clusterID, n.index, state, err),
		)
	case models.IsTransient(err):
		return fmt.Errorf(
			"%s: failed to set %s state of %s to %s: %w",
			models.ConstraintClusterControllerAvailable, nodeType, n.host, state, err,
		)
	default:
		return fmt.Errorf(
			"%s: failed to set %s state of %s to %s: %w: %w",
			models.ConstraintClusterControllerAvailable, nodeType, n.host, state, models.ErrTransient, err,
		)
	}
	if !resp.WasModified {
		return models.NewHostStateChangeDeniedForHost(
			n.host,
			models.ConstraintSetNodeState,
			fmt.Sprintf(
				"failed to set %s state of %s/%d to %s: %s",
				nodeType, n.clusterID, n.index, state, resp.Reason,
			),
		)
	}
	return nil
}

func (n *StorageNode) String() string {
	return fmt.Sprintf("storage node %s/%d on %s", n.clusterID, n.index, n.host)
}
