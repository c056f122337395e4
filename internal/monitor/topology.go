package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

type topologyFile struct {
	Applications []applicationDTO `json:"applications"`
}

type applicationDTO struct {
	ID       string       `json:"id"`
	Clusters []clusterDTO `json:"clusters"`
}

type clusterDTO struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	ExpectedSize int           `json:"expectedSize,omitempty"`
	Instances    []instanceDTO `json:"instances"`
}

type instanceDTO struct {
	ConfigID string `json:"configId"`
	Host     string `json:"host"`
	// optional static status, e.g. DOWN for a broken service without a gossip agent
	Status string `json:"status,omitempty"`
}

// Topology is the static model of every application: which service runs
// where. It knows nothing about liveness.
type Topology struct {
	mu          sync.RWMutex
	apps        map[models.ApplicationID]models.ApplicationInstance
	hosts       map[models.HostName]models.ApplicationID
	fingerprint uint64
}

func NewTopology() *Topology {
	return &Topology{
		apps:  make(map[models.ApplicationID]models.ApplicationInstance),
		hosts: make(map[models.HostName]models.ApplicationID),
	}
}

func LoadTopologyFile(path string) (*Topology, error) {
	topology := NewTopology()
	_, err := topology.Reload(path)
	if err != nil {
		return nil, err
	}
	return topology, nil
}

// Reload reads the file again and reports whether its content changed.
func (t *Topology) Reload(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read topology file %s: %w", path, err)
	}
	fingerprint := xxhash.Sum64(raw)

	t.mu.RLock()
	unchanged := t.fingerprint == fingerprint && len(t.apps) != 0
	t.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	apps, err := ParseTopology(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse topology file %s: %w", path, err)
	}
	err = t.replace(apps, fingerprint)
	if err != nil {
		return false, err
	}
	return true, nil
}

func ParseTopology(raw []byte) ([]models.ApplicationInstance, error) {
	var file topologyFile
	err := json.Unmarshal(raw, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode topology: %w", err)
	}
	apps := make([]models.ApplicationInstance, 0, len(file.Applications))
	for _, rawApp := range file.Applications {
		if rawApp.ID == "" {
			return nil, fmt.Errorf("application without id")
		}
		app := models.ApplicationInstance{ID: models.ApplicationID(rawApp.ID)}
		for _, rawCluster := range rawApp.Clusters {
			cluster := models.ServiceCluster{
				ID:           models.ClusterID(rawCluster.ID),
				Type:         models.ServiceType(rawCluster.Type),
				ExpectedSize: rawCluster.ExpectedSize,
			}
			for _, rawInstance := range rawCluster.Instances {
				status := models.ServiceStatus(strings.ToUpper(rawInstance.Status))
				if status == "" {
					status = models.ServiceNotChecked
				}
				cluster.Instances = append(cluster.Instances, models.ServiceInstance{
					ConfigID: models.ConfigID(rawInstance.ConfigID),
					Host:     models.HostName(rawInstance.Host),
					Status:   status,
				})
			}
			app.Clusters = append(app.Clusters, cluster)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Replace swaps the whole model. A host may only belong to one application.
func (t *Topology) Replace(apps []models.ApplicationInstance) error {
	return t.replace(apps, 0)
}

func (t *Topology) replace(apps []models.ApplicationInstance, fingerprint uint64) error {
	byID := make(map[models.ApplicationID]models.ApplicationInstance, len(apps))
	hosts := make(map[models.HostName]models.ApplicationID)
	for _, app := range apps {
		if _, exists := byID[app.ID]; exists {
			return fmt.Errorf("application %s is defined twice", app.ID)
		}
		byID[app.ID] = app
		for _, host := range app.HostNames() {
			if owner, exists := hosts[host]; exists {
				return fmt.Errorf("host %s belongs to both %s and %s", host, owner, app.ID)
			}
			hosts[host] = app.ID
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.apps = byID
	t.hosts = hosts
	t.fingerprint = fingerprint
	return nil
}

func (t *Topology) ApplicationForHost(host models.HostName) (models.ApplicationInstance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	appID, ok := t.hosts[host]
	if !ok {
		return models.ApplicationInstance{}, false
	}
	return t.apps[appID], true
}

func (t *Topology) Application(id models.ApplicationID) (models.ApplicationInstance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	app, ok := t.apps[id]
	return app, ok
}

// Applications returns every application sorted by id.
func (t *Topology) Applications() []models.ApplicationInstance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	apps := make([]models.ApplicationInstance, 0, len(t.apps))
	for _, app := range t.apps {
		apps = append(apps, app)
	}
	slices.SortFunc(apps, func(a, b models.ApplicationInstance) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return apps
}

// Fingerprint is the xxhash of the loaded file, zero for models set in code.
func (t *Topology) Fingerprint() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.fingerprint
}

// RunReloader rereads path every interval until ctx is done.
func (t *Topology) RunReloader(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := t.Reload(path)
			if err != nil {
				logger.Error().Err(err).Msg("failed to reload topology, keeping previous one")
				continue
			}
			if changed {
				logger.Info().Msgf("topology reloaded from %s, fingerprint %x", path, t.Fingerprint())
			}
		}
	}
}
