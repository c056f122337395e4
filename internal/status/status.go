package status

import (
	"context"
	"errors"
	"maps"

	"github.com/Sh00ty/host-orchestrator/internal/models"
)

// ErrLockLost is returned when a write finds the application lock taken
// over, e.g. after the backing lease expired.
var ErrLockLost = errors.New("application lock lost")

// Session is the host status registry of one locked application. Reads are
// served from what was loaded when the lock was taken plus own writes.
type Session interface {
	HostStatus(host models.HostName) models.HostStatus
	ApplicationStatus() models.ApplicationStatus
	SetHostStatus(ctx context.Context, host models.HostName, status models.HostStatus) error
	SetApplicationStatus(ctx context.Context, status models.ApplicationStatus) error
	// Close releases the application lock.
	Close(ctx context.Context) error
}

// Snapshot is what a locked session knows about one application. Hosts
// without an entry have no remarks.
type Snapshot struct {
	hosts       map[models.HostName]models.HostStatus
	application models.ApplicationStatus
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		hosts:       make(map[models.HostName]models.HostStatus),
		application: models.ApplicationNoRemarks,
	}
}

func (s *Snapshot) HostStatus(host models.HostName) models.HostStatus {
	status, ok := s.hosts[host]
	if !ok {
		return models.NoRemarks
	}
	return status
}

func (s *Snapshot) ApplicationStatus() models.ApplicationStatus {
	return s.application
}

func (s *Snapshot) SetHost(host models.HostName, status models.HostStatus) {
	if status == models.NoRemarks {
		delete(s.hosts, host)
		return
	}
	s.hosts[host] = status
}

func (s *Snapshot) SetApplication(status models.ApplicationStatus) {
	s.application = status
}

// Hosts returns a copy of every host with remarks.
func (s *Snapshot) Hosts() map[models.HostName]models.HostStatus {
	return maps.Clone(s.hosts)
}

func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		hosts:       maps.Clone(s.hosts),
		application: s.application,
	}
}
