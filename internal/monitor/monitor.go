package monitor

import (
	"context"
	"slices"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

// Monitor serves applications with the live status of every service.
// A service is as alive as the gossip agent of its host.
type Monitor struct {
	topology *Topology
	health   *HealthTracker
}

func New(topology *Topology, health *HealthTracker) *Monitor {
	return &Monitor{
		topology: topology,
		health:   health,
	}
}

// Run feeds membership events into the health tracker until ctx is done.
func (m *Monitor) Run(ctx context.Context, events <-chan MembershipEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.health.Handle(event)
		}
	}
}

func (m *Monitor) ApplicationForHost(host models.HostName) (models.ApplicationInstance, bool) {
	app, ok := m.topology.ApplicationForHost(host)
	if !ok {
		return models.ApplicationInstance{}, false
	}
	return m.withLiveStatus(app), true
}

func (m *Monitor) Application(id models.ApplicationID) (models.ApplicationInstance, bool) {
	app, ok := m.topology.Application(id)
	if !ok {
		return models.ApplicationInstance{}, false
	}
	return m.withLiveStatus(app), true
}

func (m *Monitor) Applications() []models.ApplicationInstance {
	apps := m.topology.Applications()
	for i := range apps {
		apps[i] = m.withLiveStatus(apps[i])
	}
	return apps
}

func (m *Monitor) Fingerprint() uint64 {
	return m.topology.Fingerprint()
}

// withLiveStatus copies the application, static DOWN from the topology
// wins over gossip.
func (m *Monitor) withLiveStatus(app models.ApplicationInstance) models.ApplicationInstance {
	live := models.ApplicationInstance{
		ID:       app.ID,
		Clusters: make([]models.ServiceCluster, 0, len(app.Clusters)),
	}
	for _, cluster := range app.Clusters {
		cluster.Instances = slices.Clone(cluster.Instances)
		for i, instance := range cluster.Instances {
			if instance.Status == models.ServiceDown {
				continue
			}
			status, known := m.health.Status(instance.Host)
			if known || instance.Status == "" {
				cluster.Instances[i].Status = status
			}
		}
		live.Clusters = append(live.Clusters, cluster)
	}
	return live
}
