package application

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

// ClusterAPI is a snapshot of one service cluster relative to a node group.
// It is built per request and never reused, health changes all the time.
type ClusterAPI struct {
	cluster models.ServiceCluster
	group   models.NodeGroup
	kind    models.ClusterKind

	downInGroup      []models.ServiceInstance
	upInGroup        []models.ServiceInstance
	downOutsideGroup []models.ServiceInstance
	upOutsideGroup   []models.ServiceInstance
	missing          int

	allowedDownNotInGroup []models.HostName
	storageNode           *models.ServiceInstance
	storageNodeUp         bool
}

func NewClusterAPI(
	cluster models.ServiceCluster,
	group models.NodeGroup,
	statuses HostStatusReader,
) (*ClusterAPI, error) {
	api := &ClusterAPI{
		cluster: cluster,
		group:   group,
		kind:    models.ClassifyCluster(cluster),
		missing: cluster.MissingServices(),
	}
	allowedDown := make(map[models.HostName]struct{})
	for _, instance := range cluster.Instances {
		hostStatus := statuses.HostStatus(instance.Host)
		down := hostStatus.IsSuspended() || instance.Status == models.ServiceDown
		inGroup := group.Contains(instance.Host)

		switch {
		case inGroup && down:
			api.downInGroup = append(api.downInGroup, instance)
		case inGroup:
			api.upInGroup = append(api.upInGroup, instance)
		case down:
			api.downOutsideGroup = append(api.downOutsideGroup, instance)
		default:
			api.upOutsideGroup = append(api.upOutsideGroup, instance)
		}
		if !inGroup && hostStatus.IsSuspended() {
			allowedDown[instance.Host] = struct{}{}
		}
		if inGroup && cluster.Type == models.ServiceTypeStorage {
			if api.storageNode != nil {
				return nil, fmt.Errorf(
					"cluster %s has more than one storage node in group %s (%s and %s): %w",
					cluster, group, api.storageNode.Host, instance.Host, models.ErrInvariantViolation,
				)
			}
			storageNode := instance
			api.storageNode = &storageNode
			api.storageNodeUp = !down
		}
	}
	if len(api.downInGroup)+len(api.upInGroup) == 0 {
		return nil, fmt.Errorf("cluster %s has no services in group %s", cluster, group)
	}
	for host := range allowedDown {
		api.allowedDownNotInGroup = append(api.allowedDownNotInGroup, host)
	}
	slices.Sort(api.allowedDownNotInGroup)
	return api, nil
}

func (c *ClusterAPI) Cluster() models.ServiceCluster {
	return c.cluster
}

func (c *ClusterAPI) ClusterID() models.ClusterID {
	return c.cluster.ID
}

func (c *ClusterAPI) ServiceType() models.ServiceType {
	return c.cluster.Type
}

func (c *ClusterAPI) Kind() models.ClusterKind {
	return c.kind
}

func (c *ClusterAPI) NodeGroup() models.NodeGroup {
	return c.group
}

func (c *ClusterAPI) IsStorageCluster() bool {
	return c.cluster.Type == models.ServiceTypeStorage
}

func (c *ClusterAPI) NoServicesInGroupIsUp() bool {
	return len(c.upInGroup) == 0
}

// NoServicesOutsideGroupIsDown treats missing services as down outside
// the group.
func (c *ClusterAPI) NoServicesOutsideGroupIsDown() bool {
	return len(c.downOutsideGroup) == 0 && c.missing == 0
}

func (c *ClusterAPI) AllServicesDown() bool {
	return len(c.upInGroup) == 0 && len(c.upOutsideGroup) == 0
}

func (c *ClusterAPI) total() int {
	return len(c.cluster.Instances) + c.missing
}

func (c *ClusterAPI) PercentageOfServicesDown() int {
	down := len(c.downInGroup) + len(c.downOutsideGroup) + c.missing
	return down * 100 / c.total()
}

// PercentageOfServicesDownIfGroupIsAllowedToBeDown is the share of the
// cluster that would be down after the whole group goes down.
func (c *ClusterAPI) PercentageOfServicesDownIfGroupIsAllowedToBeDown() int {
	inGroup := len(c.downInGroup) + len(c.upInGroup)
	down := len(c.downOutsideGroup) + c.missing + inGroup
	return down * 100 / c.total()
}

func (c *ClusterAPI) ServicesDownAndNotInGroup() []models.ServiceInstance {
	return slices.Clone(c.downOutsideGroup)
}

func (c *ClusterAPI) ServicesDownInGroup() []models.ServiceInstance {
	return slices.Clone(c.downInGroup)
}

func (c *ClusterAPI) NodesAllowedToBeDownNotInGroup() []models.HostName {
	return slices.Clone(c.allowedDownNotInGroup)
}

// StorageNodeInGroup returns the storage instance of this cluster inside
// the group, if any.
func (c *ClusterAPI) StorageNodeInGroup() (models.ServiceInstance, bool) {
	if c.storageNode == nil {
		return models.ServiceInstance{}, false
	}
	return *c.storageNode, true
}

func (c *ClusterAPI) UpStorageNodeInGroup() (models.ServiceInstance, bool) {
	if c.storageNode == nil || !c.storageNodeUp {
		return models.ServiceInstance{}, false
	}
	return *c.storageNode, true
}

// ReasonsForNoServicesUp explains a grant given only because every
// service of the cluster is down already.
func (c *ClusterAPI) ReasonsForNoServicesUp() models.SuspensionReasons {
	reasons := models.NewSuspensionReasons()
	for _, instance := range c.downServices() {
		reasons.Add(instance.Host, fmt.Sprintf("%s is down in %s", instance.ConfigID, c.cluster))
	}
	return reasons
}

// DownDescription lists what is down for denial messages.
func (c *ClusterAPI) DownDescription() string {
	parts := make([]string, 0, len(c.downOutsideGroup)+len(c.downInGroup)+1)
	for _, instance := range c.downServices() {
		parts = append(parts, instance.String())
	}
	if c.missing > 0 {
		parts = append(parts, fmt.Sprintf("%d missing services", c.missing))
	}
	if len(parts) == 0 {
		return "no services are down"
	}
	return "down: " + strings.Join(parts, ", ")
}

func (c *ClusterAPI) downServices() []models.ServiceInstance {
	down := make([]models.ServiceInstance, 0, len(c.downInGroup)+len(c.downOutsideGroup))
	down = append(down, c.downOutsideGroup...)
	down = append(down, c.downInGroup...)
	slices.SortFunc(down, func(a, b models.ServiceInstance) int {
		if cmp := strings.Compare(string(a.Host), string(b.Host)); cmp != 0 {
			return cmp
		}
		return strings.Compare(string(a.ConfigID), string(b.ConfigID))
	})
	return down
}

func (c *ClusterAPI) String() string {
	return c.cluster.String()
}
