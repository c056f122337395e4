package application

import (
	"context"
	"fmt"

	"github.com/Sh00ty/host-orchestrator/internal/clustercontroller"
	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type fakeSession struct {
	hosts     map[models.HostName]models.HostStatus
	appStatus models.ApplicationStatus
	writes    []models.HostName
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
	s.writes = append(s.writes, host)
	return nil
}

type fakeController struct {
	requests []clustercontroller.SetNodeStateRequest
	response clustercontroller.SetNodeStateResponse
	err      error
}

func (c *fakeController) SetNodeState(
	_ context.Context,
	req clustercontroller.SetNodeStateRequest,
) (clustercontroller.SetNodeStateResponse, error) {
	c.requests = append(c.requests, req)
	return c.response, c.err
}

func instances(clusterID string, serviceType models.ServiceType, hosts ...string) []models.ServiceInstance {
	result := make([]models.ServiceInstance, 0, len(hosts))
	for i, host := range hosts {
		result = append(result, models.ServiceInstance{
			ConfigID: models.ConfigID(fmt.Sprintf("%s/%s/%d", clusterID, serviceType, i)),
			Host:     models.HostName(host),
			Status:   models.ServiceUp,
		})
	}
	return result
}

func cluster(id string, serviceType models.ServiceType, hosts ...string) models.ServiceCluster {
	return models.ServiceCluster{
		ID:        models.ClusterID(id),
		Type:      serviceType,
		Instances: instances(id, serviceType, hosts...),
	}
}

func mustGroup(app models.ApplicationInstance, hosts ...models.HostName) models.NodeGroup {
	group, err := models.NewNodeGroup(app, hosts...)
	if err != nil {
		panic(err)
	}
	return group
}
