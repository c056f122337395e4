package policy

import (
	"context"
	"fmt"

	"github.com/Sh00ty/host-orchestrator/internal/application"
	"github.com/Sh00ty/host-orchestrator/internal/clustercontroller"
	"github.com/Sh00ty/host-orchestrator/internal/flags"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type fakeFlags struct {
	zone  flags.Zone
	flags map[flags.Flag]bool
}

func (f fakeFlags) BoolFlag(flag flags.Flag, _ models.ApplicationID) bool {
	return f.flags[flag]
}

func (f fakeFlags) Zone() flags.Zone {
	return f.zone
}

type fakeSession struct {
	hosts     map[models.HostName]models.HostStatus
	appStatus models.ApplicationStatus
	writes    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		hosts:     make(map[models.HostName]models.HostStatus),
		appStatus: models.ApplicationNoRemarks,
	}
}

func (s *fakeSession) HostStatus(host models.HostName) models.HostStatus {
	status, ok := s.hosts[host]
	if !ok {
		return models.NoRemarks
	}
	return status
}

func (s *fakeSession) ApplicationStatus() models.ApplicationStatus {
	return s.appStatus
}

func (s *fakeSession) SetHostStatus(_ context.Context, host models.HostName, status models.HostStatus) error {
	s.hosts[host] = status
	s.writes++
	return nil
}

type fakeController struct {
	requests []clustercontroller.SetNodeStateRequest
	refuse   bool
	// block hangs every call until the context is done
	block bool
}

func (c *fakeController) SetNodeState(
	ctx context.Context,
	req clustercontroller.SetNodeStateRequest,
) (clustercontroller.SetNodeStateResponse, error) {
	c.requests = append(c.requests, req)
	if c.block {
		<-ctx.Done()
		return clustercontroller.SetNodeStateResponse{}, ctx.Err()
	}
	if c.refuse {
		return clustercontroller.SetNodeStateResponse{Reason: "would lose redundancy"}, nil
	}
	return clustercontroller.SetNodeStateResponse{WasModified: true}, nil
}

func hostNames(prefix string, count int) []string {
	hosts := make([]string, 0, count)
	for i := range count {
		hosts = append(hosts, fmt.Sprintf("%s%02d", prefix, i))
	}
	return hosts
}

func cluster(id string, serviceType models.ServiceType, hosts ...string) models.ServiceCluster {
	instances := make([]models.ServiceInstance, 0, len(hosts))
	for i, host := range hosts {
		instances = append(instances, models.ServiceInstance{
			ConfigID: models.ConfigID(fmt.Sprintf("%s/%s/%d", id, serviceType, i)),
			Host:     models.HostName(host),
			Status:   models.ServiceUp,
		})
	}
	return models.ServiceCluster{
		ID:        models.ClusterID(id),
		Type:      serviceType,
		Instances: instances,
	}
}

// markDown sets the live status of the instances on hosts to DOWN.
func markDown(c models.ServiceCluster, hosts ...string) models.ServiceCluster {
	for i := range c.Instances {
		for _, host := range hosts {
			if string(c.Instances[i].Host) == host {
				c.Instances[i].Status = models.ServiceDown
			}
		}
	}
	return c
}

func mustGroup(app models.ApplicationInstance, hosts ...string) models.NodeGroup {
	names := make([]models.HostName, 0, len(hosts))
	for _, host := range hosts {
		names = append(names, models.HostName(host))
	}
	group, err := models.NewNodeGroup(app, names...)
	if err != nil {
		panic(err)
	}
	return group
}

func mustClusterAPI(c models.ServiceCluster, session *fakeSession, groupHosts ...string) *application.ClusterAPI {
	app := models.ApplicationInstance{ID: "app", Clusters: []models.ServiceCluster{c}}
	api, err := application.NewClusterAPI(c, mustGroup(app, groupHosts...), session)
	if err != nil {
		panic(err)
	}
	return api
}
