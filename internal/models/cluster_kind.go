package models

// ClusterKind classifies a service cluster for the suspension limit table.
type ClusterKind int8

const (
	OtherKind ClusterKind = iota
	ClusterControllerKind
	StorageKind
	ContainerKind
	AdminSlobrokKind
	AdminKind
	MetricsProxyKind
	ConfigKind
	ConfigHostAdminKind
	HostAdminKind
)

func (k ClusterKind) String() string {
	switch k {
	case ClusterControllerKind:
		return "cluster-controller"
	case StorageKind:
		return "storage"
	case ContainerKind:
		return "container"
	case AdminSlobrokKind:
		return "admin-slobrok"
	case AdminKind:
		return "admin"
	case MetricsProxyKind:
		return "metrics-proxy"
	case ConfigKind:
		return "config"
	case ConfigHostAdminKind:
		return "config-host-admin"
	case HostAdminKind:
		return "host-admin"
	}
	return "other"
}

// ClassifyCluster maps a cluster to its kind. The checks run in priority
// order, the first match wins.
func ClassifyCluster(cluster ServiceCluster) ClusterKind {
	switch {
	case cluster.Type == ServiceTypeClusterController:
		return ClusterControllerKind
	case isContentServiceType(cluster.Type):
		return StorageKind
	case cluster.Type == ServiceTypeContainer:
		return ContainerKind
	case cluster.ID == ClusterIDAdmin && cluster.Type == ServiceTypeSlobrok:
		return AdminSlobrokKind
	case cluster.ID == ClusterIDAdmin:
		return AdminKind
	case cluster.Type == ServiceTypeMetricsProxy:
		return MetricsProxyKind
	case cluster.Type == ServiceTypeConfigServer || cluster.Type == ServiceTypeController:
		return ConfigKind
	case cluster.Type == ServiceTypeHostAdmin &&
		(cluster.ID == ClusterIDConfigServerHost || cluster.ID == ClusterIDControllerHost):
		return ConfigHostAdminKind
	case cluster.Type == ServiceTypeHostAdmin:
		return HostAdminKind
	}
	return OtherKind
}

func isContentServiceType(serviceType ServiceType) bool {
	switch serviceType {
	case ServiceTypeStorage,
		ServiceTypeSearch,
		ServiceTypeDistributor,
		ServiceTypeTransactionLogServer:
		return true
	}
	return false
}
