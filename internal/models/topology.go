package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type (
	HostName      string
	ApplicationID string
	ClusterID     string
	ServiceType   string
	ConfigID      string
)

func (h HostName) String() string {
	return string(h)
}

func (a ApplicationID) String() string {
	return string(a)
}

const (
	ServiceTypeClusterController    ServiceType = "cluster-controller"
	ServiceTypeStorage              ServiceType = "storage"
	ServiceTypeSearch               ServiceType = "search"
	ServiceTypeDistributor          ServiceType = "distributor"
	ServiceTypeTransactionLogServer ServiceType = "transaction-log-server"
	ServiceTypeContainer            ServiceType = "container"
	ServiceTypeSlobrok              ServiceType = "slobrok"
	ServiceTypeMetricsProxy         ServiceType = "metrics-proxy"
	ServiceTypeConfigServer         ServiceType = "config-server"
	ServiceTypeController           ServiceType = "controller"
	ServiceTypeHostAdmin            ServiceType = "host-admin"
)

const (
	ClusterIDAdmin            ClusterID = "admin"
	ClusterIDConfigServerHost ClusterID = "config-server-host"
	ClusterIDControllerHost   ClusterID = "controller-host"
)

type ServiceStatus string

const (
	ServiceUp         ServiceStatus = "UP"
	ServiceDown       ServiceStatus = "DOWN"
	ServiceNotChecked ServiceStatus = "NOT_CHECKED"
	ServiceUnknown    ServiceStatus = "UNKNOWN"
)

type ServiceInstance struct {
	ConfigID ConfigID
	Host     HostName
	Status   ServiceStatus
}

func (s ServiceInstance) String() string {
	return fmt.Sprintf("%s on %s", s.ConfigID, s.Host)
}

// Index returns the trailing numeric component of the config id,
// e.g. 3 for "music/storage/3".
func (s ServiceInstance) Index() (int, error) {
	str := string(s.ConfigID)
	idx := strings.LastIndexByte(str, '/')
	index, err := strconv.Atoi(str[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("config id %s has no node index: %w", s.ConfigID, err)
	}
	return index, nil
}

type ServiceCluster struct {
	ID        ClusterID
	Type      ServiceType
	Instances []ServiceInstance
	// ExpectedSize is the number of instances the cluster should have,
	// zero when unknown. Instances missing from the model count as down.
	ExpectedSize int
}

func (c ServiceCluster) String() string {
	return fmt.Sprintf("%s/%s", c.Type, c.ID)
}

func (c ServiceCluster) MissingServices() int {
	return max(0, c.ExpectedSize-len(c.Instances))
}

func (c ServiceCluster) HasHostIn(hosts []HostName) bool {
	for _, instance := range c.Instances {
		if slices.Contains(hosts, instance.Host) {
			return true
		}
	}
	return false
}

type ApplicationInstance struct {
	ID       ApplicationID
	Clusters []ServiceCluster
}

func (a ApplicationInstance) HostNames() []HostName {
	seen := make(map[HostName]struct{})
	hosts := make([]HostName, 0)
	for _, cluster := range a.Clusters {
		for _, instance := range cluster.Instances {
			if _, exists := seen[instance.Host]; exists {
				continue
			}
			seen[instance.Host] = struct{}{}
			hosts = append(hosts, instance.Host)
		}
	}
	slices.Sort(hosts)
	return hosts
}

func (a ApplicationInstance) HasHost(host HostName) bool {
	for _, cluster := range a.Clusters {
		for _, instance := range cluster.Instances {
			if instance.Host == host {
				return true
			}
		}
	}
	return false
}

// ClustersOnHosts returns every cluster with at least one instance on hosts.
func (a ApplicationInstance) ClustersOnHosts(hosts []HostName) []ServiceCluster {
	clusters := make([]ServiceCluster, 0, len(a.Clusters))
	for _, cluster := range a.Clusters {
		if cluster.HasHostIn(hosts) {
			clusters = append(clusters, cluster)
		}
	}
	return clusters
}

// ClusterControllers returns the cluster controller instances of the
// application ordered by node index. They serve every content cluster.
func (a ApplicationInstance) ClusterControllers() []ServiceInstance {
	var controllers []ServiceInstance
	for _, cluster := range a.Clusters {
		if cluster.Type != ServiceTypeClusterController {
			continue
		}
		controllers = append(controllers, cluster.Instances...)
	}
	slices.SortFunc(controllers, func(a, b ServiceInstance) int {
		ai, aerr := a.Index()
		bi, berr := b.Index()
		if aerr != nil || berr != nil {
			return strings.Compare(string(a.ConfigID), string(b.ConfigID))
		}
		return ai - bi
	})
	return controllers
}
