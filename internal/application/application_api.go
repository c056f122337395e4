package application

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

// ApplicationAPI is the view of one application the policy works on.
// It lives as long as the application lock is held.
type ApplicationAPI struct {
	group        models.NodeGroup
	session      Session
	clusters     []*ClusterAPI
	storageNodes []*StorageNode
}

func NewApplicationAPI(
	group models.NodeGroup,
	session Session,
	client ClusterControllerClient,
) (*ApplicationAPI, error) {
	app := group.Application()
	touched := app.ClustersOnHosts(group.Hosts())
	slices.SortFunc(touched, func(a, b models.ServiceCluster) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.ID, b.ID),
		)
	})

	controllers := make([]models.HostName, 0)
	for _, instance := range app.ClusterControllers() {
		controllers = append(controllers, instance.Host)
	}

	api := &ApplicationAPI{
		group:    group,
		session:  session,
		clusters: make([]*ClusterAPI, 0, len(touched)),
	}
	for _, cluster := range touched {
		clusterAPI, err := NewClusterAPI(cluster, group, session)
		if err != nil {
			return nil, fmt.Errorf("failed to build cluster api of %s: %w", cluster, err)
		}
		api.clusters = append(api.clusters, clusterAPI)

		instance, ok := clusterAPI.StorageNodeInGroup()
		if !ok {
			continue
		}
		node, err := newStorageNode(instance, cluster.ID, controllers, client)
		if err != nil {
			return nil, err
		}
		api.storageNodes = append(api.storageNodes, node)
	}
	return api, nil
}

func (a *ApplicationAPI) ApplicationID() models.ApplicationID {
	return a.group.ApplicationID()
}

func (a *ApplicationAPI) NodeGroup() models.NodeGroup {
	return a.group
}

// Clusters returns the clusters with services in the group, sorted by
// service type and then by cluster id.
func (a *ApplicationAPI) Clusters() []*ClusterAPI {
	return slices.Clone(a.clusters)
}

func (a *ApplicationAPI) ApplicationStatus() models.ApplicationStatus {
	return a.session.ApplicationStatus()
}

func (a *ApplicationAPI) HostStatus(host models.HostName) models.HostStatus {
	return a.session.HostStatus(host)
}

func (a *ApplicationAPI) NodesInGroupWithStatus(statuses ...models.HostStatus) []models.HostName {
	return a.NodesInGroupWith(func(status models.HostStatus) bool {
		return slices.Contains(statuses, status)
	})
}

func (a *ApplicationAPI) NodesInGroupWith(pred func(models.HostStatus) bool) []models.HostName {
	hosts := make([]models.HostName, 0, a.group.Size())
	for _, host := range a.group.Hosts() {
		if pred(a.session.HostStatus(host)) {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// SetHostStatus writes to the registry unless the request is a probe.
func (a *ApplicationAPI) SetHostStatus(
	ctx context.Context,
	oc models.OrchestratorContext,
	host models.HostName,
	status models.HostStatus,
) error {
	if oc.Probe {
		return nil
	}
	err := a.session.SetHostStatus(ctx, host, status)
	if err != nil {
		return fmt.Errorf("failed to set status of %s to %s: %w", host, status, err)
	}
	return nil
}

func (a *ApplicationAPI) StorageNodesInGroupInClusterOrder() []*StorageNode {
	return slices.Clone(a.storageNodes)
}

func (a *ApplicationAPI) NoRemarksStorageNodesInGroupInClusterOrder() []*StorageNode {
	return a.storageNodesWith(func(status models.HostStatus) bool {
		return status == models.NoRemarks
	})
}

// SuspendedStorageNodesInGroupInReverseClusterOrder skips permanently
// down nodes, they are never brought back up.
func (a *ApplicationAPI) SuspendedStorageNodesInGroupInReverseClusterOrder() []*StorageNode {
	nodes := a.storageNodesWith(func(status models.HostStatus) bool {
		return status == models.AllowedToBeDown || status == models.ExpectedDown
	})
	slices.Reverse(nodes)
	return nodes
}

func (a *ApplicationAPI) storageNodesWith(pred func(models.HostStatus) bool) []*StorageNode {
	nodes := make([]*StorageNode, 0, len(a.storageNodes))
	for _, node := range a.storageNodes {
		if pred(a.session.HostStatus(node.Host())) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
